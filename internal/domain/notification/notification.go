package notification

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event names published for offer state changes.
const (
	EventOfferCreated   = "offer.created"
	EventOfferCountered = "offer.countered"
	EventOfferAccepted  = "offer.accepted"
	EventOfferRejected  = "offer.rejected"
	EventOfferCancelled = "offer.cancelled"
	EventOfferExpired   = "offer.expired"
	EventOfferCompleted = "offer.completed"
)

var (
	ErrClientNotFound = errors.New("SSE client not found")
	ErrChannelFull    = errors.New("SSE message channel full")
)

// OfferChannel is the per-offer system message channel key.
func OfferChannel(offerID uuid.UUID) string {
	return "offer:" + offerID.String()
}

// ItemChannel carries item status changes.
func ItemChannel(itemID uuid.UUID) string {
	return "item:" + itemID.String()
}

// UserChannel carries every event addressed to one participant.
func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// Notice describes one offer state change to be delivered to its participants.
type Notice struct {
	OfferID      uuid.UUID   `json:"offerId"`
	ItemID       uuid.UUID   `json:"itemId"`
	Event        string      `json:"event"`
	Status       string      `json:"status"`
	Message      string      `json:"message"`
	ActorID      uuid.UUID   `json:"actorId"`
	RecipientIDs []uuid.UUID `json:"recipientIds"`
	OccurredAt   time.Time   `json:"occurredAt"`
}

// ChannelKey is the message channel the notice is persisted under.
func (n Notice) ChannelKey() string {
	return OfferChannel(n.OfferID)
}

// SystemMessage is a persisted human-readable notice on an offer channel.
type SystemMessage struct {
	ID         uuid.UUID `json:"id"`
	ChannelKey string    `json:"channelKey"`
	OfferID    uuid.UUID `json:"offerId"`
	Event      string    `json:"event"`
	Body       string    `json:"body"`
	ActorID    uuid.UUID `json:"actorId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewSystemMessage builds the persisted form of a notice.
func NewSystemMessage(n Notice) *SystemMessage {
	createdAt := n.OccurredAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &SystemMessage{
		ID:         uuid.New(),
		ChannelKey: n.ChannelKey(),
		OfferID:    n.OfferID,
		Event:      n.Event,
		Body:       n.Message,
		ActorID:    n.ActorID,
		CreatedAt:  createdAt,
	}
}

// SSEClient represents an active SSE connection
type SSEClient struct {
	ClientID    string
	UserID      *string
	Channels    []string
	ConnectedAt time.Time
	MessageChan chan *SSEMessage
}

// NewSSEClient creates a new SSE client
func NewSSEClient(clientID string, userID *string, channels []string) *SSEClient {
	return &SSEClient{
		ClientID:    clientID,
		UserID:      userID,
		Channels:    channels,
		ConnectedAt: time.Now().UTC(),
		MessageChan: make(chan *SSEMessage, 100),
	}
}

// Subscribed reports whether the client listens on channel.
func (c *SSEClient) Subscribed(channel string) bool {
	for _, ch := range c.Channels {
		if ch == channel {
			return true
		}
	}
	return false
}

// Close closes the client's message channel
func (c *SSEClient) Close() {
	close(c.MessageChan)
}

// SSEMessage represents a message to be sent via SSE
type SSEMessage struct {
	ID        string          `json:"id"`
	Channel   string          `json:"channel"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewSSEMessage creates a new SSE message
func NewSSEMessage(channel, event string, data json.RawMessage) *SSEMessage {
	return &SSEMessage{
		ID:        uuid.New().String(),
		Channel:   channel,
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
