package sqlite

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestStore_CreateOfferMapsConstraintErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "buyer already has an open offer",
			err:  errors.New("constraint failed: UNIQUE constraint failed: offers.item_id, offers.buyer_id (2067)"),
			want: offer.ErrDuplicateActiveOffer,
		},
		{
			name: "item already has a winner",
			err:  errors.New("constraint failed: UNIQUE constraint failed: offers.item_id (2067)"),
			want: offer.ErrConflictAlreadyResolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO offers")).WillReturnError(tt.err)

			o := offer.New(uuid.New(), uuid.New(), decimal.NewFromInt(100), time.Now().Add(time.Hour), time.Now())
			err := s.CreateOffer(context.Background(), o)

			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE items SET status")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.WithinTx(context.Background(), func(tx offer.Tx) error {
		ok, err := tx.UpdateItemStatus(context.Background(), uuid.New(), "RESERVED", time.Now(), "ACTIVE")
		require.NoError(t, err)
		assert.False(t, ok)
		return offer.ErrConflictAlreadyResolved
	})

	assert.ErrorIs(t, err, offer.ErrConflictAlreadyResolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTxRetriesLockedBegin(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := s.WithinTx(context.Background(), func(tx offer.Tx) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetOfferQueryError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, item_id")).WillReturnError(errors.New("disk I/O error"))

	o, err := s.GetOffer(context.Background(), uuid.New())

	assert.Nil(t, o)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, offer.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
