package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
)

const offerColumns = `id, item_id, buyer_id, offer_amount, counter_offer_amount, agreed_amount,
	status, expires_at, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*offer.Offer, error) {
	var (
		o                                   offer.Offer
		id, itemID, buyerID, amount, status string
		counter, agreed, expiresAt          sql.NullString
		createdAt, updatedAt                string
	)
	if err := row.Scan(&id, &itemID, &buyerID, &amount, &counter, &agreed,
		&status, &expiresAt, &o.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if o.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("offer id: %w", err)
	}
	if o.ItemID, err = uuid.Parse(itemID); err != nil {
		return nil, fmt.Errorf("offer item id: %w", err)
	}
	if o.BuyerID, err = uuid.Parse(buyerID); err != nil {
		return nil, fmt.Errorf("offer buyer id: %w", err)
	}
	if o.OfferAmount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("offer amount: %w", err)
	}
	if o.CounterOfferAmount, err = parseNullDecimal(counter); err != nil {
		return nil, fmt.Errorf("counter amount: %w", err)
	}
	if o.AgreedAmount, err = parseNullDecimal(agreed); err != nil {
		return nil, fmt.Errorf("agreed amount: %w", err)
	}
	o.Status = offer.Status(status)
	if o.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
		return nil, fmt.Errorf("expires at: %w", err)
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("created at: %w", err)
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("updated at: %w", err)
	}
	return &o, nil
}

func collectOffers(rows *sql.Rows) ([]*offer.Offer, error) {
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

func statusArgs(statuses []offer.Status) []any {
	args := make([]any, 0, len(statuses))
	for _, st := range statuses {
		args = append(args, string(st))
	}
	return args
}

func (c *conn) GetOffer(ctx context.Context, offerID uuid.UUID) (*offer.Offer, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = ?`, offerID.String())
	o, err := scanOffer(row)
	if isNoRows(err) {
		return nil, nil
	}
	return o, err
}

func (c *conn) FindActiveOfferByBuyer(ctx context.Context, itemID, buyerID uuid.UUID) (*offer.Offer, error) {
	args := append([]any{itemID.String(), buyerID.String()}, statusArgs(offer.OpenStatuses)...)
	row := c.q.QueryRowContext(ctx,
		`SELECT `+offerColumns+` FROM offers
		 WHERE item_id = ? AND buyer_id = ? AND status IN (`+placeholders(len(offer.OpenStatuses))+`)
		 LIMIT 1`, args...)
	o, err := scanOffer(row)
	if isNoRows(err) {
		return nil, nil
	}
	return o, err
}

func (c *conn) CreateOffer(ctx context.Context, o *offer.Offer) error {
	_, err := c.q.ExecContext(ctx,
		`INSERT INTO offers (`+offerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID.String(), o.ItemID.String(), o.BuyerID.String(), o.OfferAmount.String(),
		formatDecimalPtr(o.CounterOfferAmount), formatDecimalPtr(o.AgreedAmount),
		string(o.Status), formatTimePtr(o.ExpiresAt), o.Version,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	return mapConstraintErr(err)
}

func (c *conn) UpdateOfferConditional(ctx context.Context, next *offer.Offer, expected offer.Status, expectedVersion int64) (bool, error) {
	res, err := c.q.ExecContext(ctx,
		`UPDATE offers
		 SET offer_amount = ?, counter_offer_amount = ?, agreed_amount = ?, status = ?,
		     expires_at = ?, version = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND version = ?`,
		next.OfferAmount.String(), formatDecimalPtr(next.CounterOfferAmount), formatDecimalPtr(next.AgreedAmount),
		string(next.Status), formatTimePtr(next.ExpiresAt), next.Version, formatTime(next.UpdatedAt),
		next.ID.String(), string(expected), expectedVersion,
	)
	if err != nil {
		return false, mapConstraintErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *conn) BulkRejectOtherOffers(ctx context.Context, itemID, excludeID uuid.UUID, from []offer.Status, now time.Time) ([]*offer.Offer, error) {
	if len(from) == 0 {
		return nil, nil
	}
	args := append([]any{string(offer.StatusRejected), formatTime(now), itemID.String(), excludeID.String()}, statusArgs(from)...)
	rows, err := c.q.QueryContext(ctx,
		`UPDATE offers
		 SET status = ?, counter_offer_amount = NULL, version = version + 1, updated_at = ?
		 WHERE item_id = ? AND id <> ? AND status IN (`+placeholders(len(from))+`)
		 RETURNING `+offerColumns, args...)
	if err != nil {
		return nil, err
	}
	return collectOffers(rows)
}

func (c *conn) CountLiveOffers(ctx context.Context, itemID uuid.UUID, excludeID *uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM offers WHERE item_id = ? AND status IN (` + placeholders(len(offer.LiveStatuses)) + `)`
	args := append([]any{itemID.String()}, statusArgs(offer.LiveStatuses)...)
	if excludeID != nil {
		query += ` AND id <> ?`
		args = append(args, excludeID.String())
	}
	var n int
	if err := c.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *conn) CountOffersByStatus(ctx context.Context, itemID uuid.UUID) (offer.Counts, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM offers WHERE item_id = ? GROUP BY status`, itemID.String())
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

// ListOffersByItem returns every offer of the item, newest first.
func (c *conn) ListOffersByItem(ctx context.Context, itemID uuid.UUID) ([]*offer.Offer, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE item_id = ? ORDER BY created_at DESC, id`, itemID.String())
	if err != nil {
		return nil, err
	}
	return collectOffers(rows)
}

// ListExpiredOffers returns live offers of the item whose deadline is before now.
func (c *conn) ListExpiredOffers(ctx context.Context, itemID uuid.UUID, now time.Time) ([]*offer.Offer, error) {
	args := append([]any{itemID.String()}, statusArgs(offer.LiveStatuses)...)
	args = append(args, formatTime(now))
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+offerColumns+` FROM offers
		 WHERE item_id = ? AND status IN (`+placeholders(len(offer.LiveStatuses))+`)
		   AND expires_at IS NOT NULL AND expires_at < ?
		 ORDER BY expires_at`, args...)
	if err != nil {
		return nil, err
	}
	return collectOffers(rows)
}
