package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/haggle-hub/haggle-hub/internal/domain/item"
	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
)

const (
	uniqueViolation   = "23505"
	numericOutOfRange = "22003"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgConn struct {
	q querier
}

// NegotiationStore implements offer.Store on Postgres.
type NegotiationStore struct {
	*pgConn
	pool *pgxpool.Pool
}

var _ offer.Store = (*NegotiationStore)(nil)

func NewNegotiationStore(pool *pgxpool.Pool) *NegotiationStore {
	return &NegotiationStore{pgConn: &pgConn{q: pool}, pool: pool}
}

// WithinTx runs fn in a READ COMMITTED transaction. Row locks taken by
// GetItemForUpdate are held until fn returns.
func (s *NegotiationStore) WithinTx(ctx context.Context, fn func(tx offer.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgConn{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgErr(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (s *NegotiationStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *NegotiationStore) Close() error {
	s.pool.Close()
	return nil
}

// mapPgErr turns unique index violations and numeric overflow into negotiation errors.
func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Code == numericOutOfRange {
		return fmt.Errorf("%w: %v", offer.ErrInvalidInput, err)
	}
	if pgErr.Code != uniqueViolation {
		return err
	}
	if pgErr.ConstraintName == "uq_offers_open_buyer" {
		return fmt.Errorf("%w: %v", offer.ErrDuplicateActiveOffer, err)
	}
	return fmt.Errorf("%w: %v", offer.ErrConflictAlreadyResolved, err)
}

const offerColumns = `id, item_id, buyer_id, offer_amount::text, counter_offer_amount::text, agreed_amount::text,
	status, expires_at, version, created_at, updated_at`

func scanOffer(row pgx.Row) (*offer.Offer, error) {
	var (
		o               offer.Offer
		amount, status  string
		counter, agreed *string
	)
	if err := row.Scan(&o.ID, &o.ItemID, &o.BuyerID, &amount, &counter, &agreed,
		&status, &o.ExpiresAt, &o.Version, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var err error
	if o.OfferAmount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("offer amount: %w", err)
	}
	if o.CounterOfferAmount, err = parseDecimalPtr(counter); err != nil {
		return nil, fmt.Errorf("counter amount: %w", err)
	}
	if o.AgreedAmount, err = parseDecimalPtr(agreed); err != nil {
		return nil, fmt.Errorf("agreed amount: %w", err)
	}
	o.Status = offer.Status(status)
	return &o, nil
}

func scanOffers(rows pgx.Rows) ([]*offer.Offer, error) {
	defer rows.Close()
	var offers []*offer.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

func parseDecimalPtr(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func statusStrings(statuses []offer.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, string(st))
	}
	return out
}

func (c *pgConn) GetOffer(ctx context.Context, offerID uuid.UUID) (*offer.Offer, error) {
	return scanOffer(c.q.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id=$1`, offerID))
}

func (c *pgConn) FindActiveOfferByBuyer(ctx context.Context, itemID, buyerID uuid.UUID) (*offer.Offer, error) {
	return scanOffer(c.q.QueryRow(ctx, `
		SELECT `+offerColumns+` FROM offers
		WHERE item_id=$1 AND buyer_id=$2 AND status = ANY($3)
		LIMIT 1
	`, itemID, buyerID, statusStrings(offer.OpenStatuses)))
}

func (c *pgConn) CreateOffer(ctx context.Context, o *offer.Offer) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO offers
		(id, item_id, buyer_id, offer_amount, counter_offer_amount, agreed_amount, status, expires_at, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6::numeric,$7,$8,$9,$10,$11)
	`, o.ID, o.ItemID, o.BuyerID, o.OfferAmount.String(), decimalArg(o.CounterOfferAmount), decimalArg(o.AgreedAmount),
		string(o.Status), o.ExpiresAt, o.Version, o.CreatedAt, o.UpdatedAt)
	return mapPgErr(err)
}

func (c *pgConn) UpdateOfferConditional(ctx context.Context, next *offer.Offer, expected offer.Status, expectedVersion int64) (bool, error) {
	tag, err := c.q.Exec(ctx, `
		UPDATE offers
		SET offer_amount=$1::numeric, counter_offer_amount=$2::numeric, agreed_amount=$3::numeric,
		    status=$4, expires_at=$5, version=$6, updated_at=$7
		WHERE id=$8 AND status=$9 AND version=$10
	`, next.OfferAmount.String(), decimalArg(next.CounterOfferAmount), decimalArg(next.AgreedAmount),
		string(next.Status), next.ExpiresAt, next.Version, next.UpdatedAt,
		next.ID, string(expected), expectedVersion)
	if err != nil {
		return false, mapPgErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (c *pgConn) BulkRejectOtherOffers(ctx context.Context, itemID, excludeID uuid.UUID, from []offer.Status, now time.Time) ([]*offer.Offer, error) {
	if len(from) == 0 {
		return nil, nil
	}
	rows, err := c.q.Query(ctx, `
		UPDATE offers
		SET status=$1, counter_offer_amount=NULL, version=version+1, updated_at=$2
		WHERE item_id=$3 AND id<>$4 AND status = ANY($5)
		RETURNING `+offerColumns,
		string(offer.StatusRejected), now, itemID, excludeID, statusStrings(from))
	if err != nil {
		return nil, err
	}
	return scanOffers(rows)
}

func (c *pgConn) CountLiveOffers(ctx context.Context, itemID uuid.UUID, excludeID *uuid.UUID) (int, error) {
	var n int
	err := c.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM offers
		WHERE item_id=$1 AND status = ANY($2) AND ($3::uuid IS NULL OR id<>$3)
	`, itemID, statusStrings(offer.LiveStatuses), excludeID).Scan(&n)
	return n, err
}

func (c *pgConn) CountOffersByStatus(ctx context.Context, itemID uuid.UUID) (offer.Counts, error) {
	rows, err := c.q.Query(ctx, `SELECT status, COUNT(*) FROM offers WHERE item_id=$1 GROUP BY status`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := offer.Counts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[offer.Status(status)] = n
	}
	return counts, rows.Err()
}

func (c *pgConn) ListOffersByItem(ctx context.Context, itemID uuid.UUID) ([]*offer.Offer, error) {
	rows, err := c.q.Query(ctx, `SELECT `+offerColumns+` FROM offers WHERE item_id=$1 ORDER BY created_at DESC, id`, itemID)
	if err != nil {
		return nil, err
	}
	return scanOffers(rows)
}

func (c *pgConn) ListExpiredOffers(ctx context.Context, itemID uuid.UUID, now time.Time) ([]*offer.Offer, error) {
	rows, err := c.q.Query(ctx, `
		SELECT `+offerColumns+` FROM offers
		WHERE item_id=$1 AND status = ANY($2) AND expires_at IS NOT NULL AND expires_at < $3
		ORDER BY expires_at
	`, itemID, statusStrings(offer.LiveStatuses), now)
	if err != nil {
		return nil, err
	}
	return scanOffers(rows)
}

const itemColumns = `id, seller_id, title, asking_price::text, status, created_at, updated_at`

func scanItem(row pgx.Row) (*item.Item, error) {
	var (
		it            item.Item
		price, status string
	)
	if err := row.Scan(&it.ID, &it.SellerID, &it.Title, &price, &status, &it.CreatedAt, &it.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var err error
	if it.AskingPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("asking price: %w", err)
	}
	it.Status = item.Status(status)
	return &it, nil
}

func (c *pgConn) CreateItem(ctx context.Context, it *item.Item) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO items (id, seller_id, title, asking_price, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4::numeric,$5,$6,$7)
	`, it.ID, it.SellerID, it.Title, it.AskingPrice.String(), string(it.Status), it.CreatedAt, it.UpdatedAt)
	return mapPgErr(err)
}

func (c *pgConn) GetItem(ctx context.Context, itemID uuid.UUID) (*item.Item, error) {
	return scanItem(c.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1`, itemID))
}

func (c *pgConn) GetItemForUpdate(ctx context.Context, itemID uuid.UUID) (*item.Item, error) {
	return scanItem(c.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1 FOR UPDATE`, itemID))
}

func (c *pgConn) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, next item.Status, now time.Time, expected ...item.Status) (bool, error) {
	expectedStrings := []string{}
	for _, st := range expected {
		expectedStrings = append(expectedStrings, string(st))
	}
	tag, err := c.q.Exec(ctx, `
		UPDATE items SET status=$1, updated_at=$2
		WHERE id=$3 AND (cardinality($4::text[]) = 0 OR status = ANY($4))
	`, string(next), now, itemID, expectedStrings)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
