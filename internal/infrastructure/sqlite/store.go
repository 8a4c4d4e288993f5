// Package sqlite is the embedded negotiation store. Write transactions take the
// database write lock at BEGIN, so the item read that opens every action already
// serialises concurrent actions on the same database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/haggle-hub/haggle-hub/internal/domain/offer"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

const timeLayout = "2006-01-02T15:04:05.000000000Z"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs store statements on the database or inside a transaction.
type conn struct {
	q querier
}

// Store implements offer.Store on SQLite.
type Store struct {
	*conn
	db *sql.DB
}

var _ offer.Store = (*Store)(nil)

// New opens (or creates) the database at path and applies the schema.
func New(path string) (*Store, error) {
	dsn := path +
		"?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(10000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := NewWithDB(db)
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an already-open database without touching the schema.
func NewWithDB(db *sql.DB) *Store {
	return &Store{conn: &conn{q: db}, db: db}
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// WithinTx runs fn in one transaction. Lock contention retries the whole unit.
func (s *Store) WithinTx(ctx context.Context, fn func(tx offer.Tx) error) error {
	return retryOp(defaultRetryConfig, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := fn(&conn{q: tx}); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return mapConstraintErr(fmt.Errorf("commit tx: %w", err))
		}
		return nil
	})
}

// mapConstraintErr turns unique index violations into negotiation errors.
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return err
	}
	if strings.Contains(msg, "buyer_id") {
		return fmt.Errorf("%w: %v", offer.ErrDuplicateActiveOffer, err)
	}
	return fmt.Errorf("%w: %v", offer.ErrConflictAlreadyResolved, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDecimalPtr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
