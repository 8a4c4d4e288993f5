package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/haggle-hub/haggle-hub/internal/domain/item"
)

func scanItem(row rowScanner) (*item.Item, error) {
	var (
		it                          item.Item
		id, sellerID, price, status string
		createdAt, updatedAt        string
	)
	if err := row.Scan(&id, &sellerID, &it.Title, &price, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if it.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("item id: %w", err)
	}
	if it.SellerID, err = uuid.Parse(sellerID); err != nil {
		return nil, fmt.Errorf("seller id: %w", err)
	}
	if it.AskingPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("asking price: %w", err)
	}
	it.Status = item.Status(status)
	if it.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("created at: %w", err)
	}
	if it.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("updated at: %w", err)
	}
	return &it, nil
}

func (c *conn) CreateItem(ctx context.Context, it *item.Item) error {
	_, err := c.q.ExecContext(ctx,
		`INSERT INTO items (id, seller_id, title, asking_price, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		it.ID.String(), it.SellerID.String(), it.Title, it.AskingPrice.String(), string(it.Status),
		formatTime(it.CreatedAt), formatTime(it.UpdatedAt),
	)
	return err
}

func (c *conn) GetItem(ctx context.Context, itemID uuid.UUID) (*item.Item, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT id, seller_id, title, asking_price, status, created_at, updated_at
		 FROM items WHERE id = ?`, itemID.String())
	it, err := scanItem(row)
	if isNoRows(err) {
		return nil, nil
	}
	return it, err
}

// GetItemForUpdate is a plain read: the immediate transaction already holds the write lock.
func (c *conn) GetItemForUpdate(ctx context.Context, itemID uuid.UUID) (*item.Item, error) {
	return c.GetItem(ctx, itemID)
}

func (c *conn) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, next item.Status, now time.Time, expected ...item.Status) (bool, error) {
	query := `UPDATE items SET status = ?, updated_at = ? WHERE id = ?`
	args := []any{string(next), formatTime(now), itemID.String()}
	if len(expected) > 0 {
		query += ` AND status IN (` + placeholders(len(expected)) + `)`
		for _, st := range expected {
			args = append(args, string(st))
		}
	}
	res, err := c.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
