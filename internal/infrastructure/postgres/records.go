package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/haggle-hub/haggle-hub/internal/domain/history"
	"github.com/haggle-hub/haggle-hub/internal/domain/notification"
	"github.com/haggle-hub/haggle-hub/internal/domain/transaction"
)

func (c *pgConn) CreateTransaction(ctx context.Context, t *transaction.Transaction) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO transactions (id, offer_id, item_id, buyer_id, seller_id, final_price, created_at)
		VALUES ($1,$2,$3,$4,$5,$6::numeric,$7)
	`, t.ID, t.OfferID, t.ItemID, t.BuyerID, t.SellerID, t.FinalPrice.String(), t.CreatedAt)
	return mapPgErr(err)
}

func (c *pgConn) GetTransactionByOffer(ctx context.Context, offerID uuid.UUID) (*transaction.Transaction, error) {
	var (
		t     transaction.Transaction
		price string
	)
	err := c.q.QueryRow(ctx, `
		SELECT id, offer_id, item_id, buyer_id, seller_id, final_price::text, created_at
		FROM transactions WHERE offer_id=$1
	`, offerID).Scan(&t.ID, &t.OfferID, &t.ItemID, &t.BuyerID, &t.SellerID, &price, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t.FinalPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("final price: %w", err)
	}
	return &t, nil
}

func (c *pgConn) AppendHistory(ctx context.Context, e *history.Entry) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO offer_history (id, offer_id, action, amount, actor_id, created_at)
		VALUES ($1,$2,$3,$4::numeric,$5,$6)
	`, e.ID, e.OfferID, string(e.Action), decimalArg(e.Amount), e.ActorID, e.CreatedAt)
	return err
}

func (c *pgConn) ListHistory(ctx context.Context, offerID uuid.UUID) ([]*history.Entry, error) {
	rows, err := c.q.Query(ctx, `
		SELECT id, offer_id, action, amount::text, actor_id, created_at
		FROM offer_history WHERE offer_id=$1 ORDER BY seq
	`, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*history.Entry
	for rows.Next() {
		var (
			e      history.Entry
			action string
			amount *string
		)
		if err := rows.Scan(&e.ID, &e.OfferID, &action, &amount, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = history.Action(action)
		if e.Amount, err = parseDecimalPtr(amount); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (c *pgConn) CreateMessage(ctx context.Context, m *notification.SystemMessage) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO system_messages (id, channel_key, offer_id, event, body, actor_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, m.ID, m.ChannelKey, m.OfferID, m.Event, m.Body, m.ActorID, m.CreatedAt)
	return err
}

func (c *pgConn) ListMessages(ctx context.Context, offerID uuid.UUID) ([]*notification.SystemMessage, error) {
	rows, err := c.q.Query(ctx, `
		SELECT id, channel_key, offer_id, event, body, actor_id, created_at
		FROM system_messages WHERE channel_key=$1 ORDER BY seq
	`, notification.OfferChannel(offerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*notification.SystemMessage
	for rows.Next() {
		var m notification.SystemMessage
		if err := rows.Scan(&m.ID, &m.ChannelKey, &m.OfferID, &m.Event, &m.Body, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
