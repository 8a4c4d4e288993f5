package history

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_history.go -package=mocks . Logger,Repository

import (
	"context"

	"github.com/google/uuid"
)

// Logger records offer history. Failures are reported but never undo a transition.
type Logger interface {
	LogHistory(ctx context.Context, entry *Entry) error
}

// Repository persists history entries.
type Repository interface {
	AppendHistory(ctx context.Context, entry *Entry) error
	ListHistory(ctx context.Context, offerID uuid.UUID) ([]*Entry, error)
}
