package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/haggle-hub/haggle-hub/internal/domain/history"
	"github.com/haggle-hub/haggle-hub/internal/domain/notification"
	"github.com/haggle-hub/haggle-hub/internal/domain/transaction"
)

func (c *conn) CreateTransaction(ctx context.Context, t *transaction.Transaction) error {
	_, err := c.q.ExecContext(ctx,
		`INSERT INTO transactions (id, offer_id, item_id, buyer_id, seller_id, final_price, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.OfferID.String(), t.ItemID.String(), t.BuyerID.String(), t.SellerID.String(),
		t.FinalPrice.String(), formatTime(t.CreatedAt),
	)
	return mapConstraintErr(err)
}

func (c *conn) GetTransactionByOffer(ctx context.Context, offerID uuid.UUID) (*transaction.Transaction, error) {
	var (
		t                                         transaction.Transaction
		id, oid, itemID, buyerID, sellerID, price string
		createdAt                                 string
	)
	err := c.q.QueryRowContext(ctx,
		`SELECT id, offer_id, item_id, buyer_id, seller_id, final_price, created_at
		 FROM transactions WHERE offer_id = ?`, offerID.String(),
	).Scan(&id, &oid, &itemID, &buyerID, &sellerID, &price, &createdAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		dst *uuid.UUID
		src string
	}{{&t.ID, id}, {&t.OfferID, oid}, {&t.ItemID, itemID}, {&t.BuyerID, buyerID}, {&t.SellerID, sellerID}} {
		if *f.dst, err = uuid.Parse(f.src); err != nil {
			return nil, fmt.Errorf("transaction ids: %w", err)
		}
	}
	if t.FinalPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("final price: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("created at: %w", err)
	}
	return &t, nil
}

func (c *conn) AppendHistory(ctx context.Context, e *history.Entry) error {
	_, err := c.q.ExecContext(ctx,
		`INSERT INTO offer_history (id, offer_id, action, amount, actor_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.OfferID.String(), string(e.Action), formatDecimalPtr(e.Amount),
		e.ActorID.String(), formatTime(e.CreatedAt),
	)
	return err
}

func (c *conn) ListHistory(ctx context.Context, offerID uuid.UUID) ([]*history.Entry, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT id, offer_id, action, amount, actor_id, created_at
		 FROM offer_history WHERE offer_id = ? ORDER BY created_at, rowid`, offerID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*history.Entry
	for rows.Next() {
		var (
			e                            history.Entry
			id, oid, action, actorID, at string
			amount                       sql.NullString
		)
		if err := rows.Scan(&id, &oid, &action, &amount, &actorID, &at); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if e.OfferID, err = uuid.Parse(oid); err != nil {
			return nil, err
		}
		if e.ActorID, err = uuid.Parse(actorID); err != nil {
			return nil, err
		}
		if e.Amount, err = parseNullDecimal(amount); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		e.Action = history.Action(action)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (c *conn) CreateMessage(ctx context.Context, m *notification.SystemMessage) error {
	_, err := c.q.ExecContext(ctx,
		`INSERT INTO system_messages (id, channel_key, offer_id, event, body, actor_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.ChannelKey, m.OfferID.String(), m.Event, m.Body, m.ActorID.String(), formatTime(m.CreatedAt),
	)
	return err
}

func (c *conn) ListMessages(ctx context.Context, offerID uuid.UUID) ([]*notification.SystemMessage, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT id, channel_key, offer_id, event, body, actor_id, created_at
		 FROM system_messages WHERE channel_key = ? ORDER BY created_at, rowid`,
		notification.OfferChannel(offerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*notification.SystemMessage
	for rows.Next() {
		var (
			m                    notification.SystemMessage
			id, oid, actorID, at string
		)
		if err := rows.Scan(&id, &m.ChannelKey, &oid, &m.Event, &m.Body, &actorID, &at); err != nil {
			return nil, err
		}
		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if m.OfferID, err = uuid.Parse(oid); err != nil {
			return nil, err
		}
		if m.ActorID, err = uuid.Parse(actorID); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
