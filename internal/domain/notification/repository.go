package notification

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_notification.go -package=mocks . Notifier,Publisher,MessageRepository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Notifier delivers offer notices to participants. Failures never affect the outcome of a transition.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// Publisher fans a payload out on a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload json.RawMessage) error
}

// MessageRepository persists system messages per offer channel.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *SystemMessage) error
	ListMessages(ctx context.Context, offerID uuid.UUID) ([]*SystemMessage, error)
}

// SSEHub defines the interface for managing SSE connections
type SSEHub interface {
	Publisher

	Register(client *SSEClient)
	Unregister(clientID string)
	GetClientCount() int
	Stop()
}
