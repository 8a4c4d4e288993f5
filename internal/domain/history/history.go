package history

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Action is the kind of event recorded against an offer.
type Action string

const (
	ActionCreated   Action = "CREATED"
	ActionCountered Action = "COUNTERED"
	ActionAccepted  Action = "ACCEPTED"
	ActionRejected  Action = "REJECTED"
	ActionCancelled Action = "CANCELLED"
	ActionExpired   Action = "EXPIRED"
	ActionCompleted Action = "COMPLETED"
)

// Entry is one append-only history record.
type Entry struct {
	ID        uuid.UUID        `json:"id"`
	OfferID   uuid.UUID        `json:"offerId"`
	Action    Action           `json:"action"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	ActorID   uuid.UUID        `json:"actorId"`
	CreatedAt time.Time        `json:"createdAt"`
}

// NewEntry creates a history entry.
func NewEntry(offerID uuid.UUID, action Action, amount *decimal.Decimal, actorID uuid.UUID, at time.Time) *Entry {
	var a *decimal.Decimal
	if amount != nil {
		v := *amount
		a = &v
	}
	return &Entry{
		ID:        uuid.New(),
		OfferID:   offerID,
		Action:    action,
		Amount:    a,
		ActorID:   actorID,
		CreatedAt: at,
	}
}
