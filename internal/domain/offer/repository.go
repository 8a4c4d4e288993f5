package offer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/haggle-hub/haggle-hub/internal/domain/history"
	"github.com/haggle-hub/haggle-hub/internal/domain/item"
	"github.com/haggle-hub/haggle-hub/internal/domain/notification"
	"github.com/haggle-hub/haggle-hub/internal/domain/transaction"
)

// Tx is the set of reads and conditional writes available inside one negotiation transaction.
// Getters return (nil, nil) when the row does not exist.
type Tx interface {
	GetItem(ctx context.Context, itemID uuid.UUID) (*item.Item, error)
	// GetItemForUpdate locks the item row until the transaction ends.
	GetItemForUpdate(ctx context.Context, itemID uuid.UUID) (*item.Item, error)
	GetOffer(ctx context.Context, offerID uuid.UUID) (*Offer, error)
	FindActiveOfferByBuyer(ctx context.Context, itemID, buyerID uuid.UUID) (*Offer, error)

	CreateOffer(ctx context.Context, o *Offer) error
	// UpdateOfferConditional writes next only if the stored row still has the expected status and version.
	UpdateOfferConditional(ctx context.Context, next *Offer, expected Status, expectedVersion int64) (bool, error)
	// BulkRejectOtherOffers moves every offer of the item in one of from, except excludeID, to REJECTED.
	BulkRejectOtherOffers(ctx context.Context, itemID, excludeID uuid.UUID, from []Status, now time.Time) ([]*Offer, error)

	CountLiveOffers(ctx context.Context, itemID uuid.UUID, excludeID *uuid.UUID) (int, error)
	CountOffersByStatus(ctx context.Context, itemID uuid.UUID) (Counts, error)

	// UpdateItemStatus sets the status when the current one is in expected (any, if empty).
	UpdateItemStatus(ctx context.Context, itemID uuid.UUID, next item.Status, now time.Time, expected ...item.Status) (bool, error)

	CreateTransaction(ctx context.Context, t *transaction.Transaction) error
}

// Store is the shared store every engine instance coordinates through.
type Store interface {
	Tx
	history.Repository
	notification.MessageRepository

	// WithinTx runs fn in one transaction, committing only when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	CreateItem(ctx context.Context, it *item.Item) error
	ListOffersByItem(ctx context.Context, itemID uuid.UUID) ([]*Offer, error)
	ListExpiredOffers(ctx context.Context, itemID uuid.UUID, now time.Time) ([]*Offer, error)
	GetTransactionByOffer(ctx context.Context, offerID uuid.UUID) (*transaction.Transaction, error)

	Ping(ctx context.Context) error
	Close() error
}
