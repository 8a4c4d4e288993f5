package offer

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents offer negotiation status.
type Status string

const (
	StatusPending             Status = "PENDING"
	StatusCounterOfferPending Status = "COUNTER_OFFER_PENDING"
	StatusAwaitingCompletion  Status = "AWAITING_COMPLETION"
	StatusRejected            Status = "REJECTED"
	StatusCancelled           Status = "CANCELLED"
	StatusCompleted           Status = "COMPLETED"
)

// LiveStatuses are the unresolved statuses that carry an expiry.
var LiveStatuses = []Status{StatusPending, StatusCounterOfferPending}

// OpenStatuses are all non-terminal statuses.
var OpenStatuses = []Status{StatusPending, StatusCounterOfferPending, StatusAwaitingCompletion}

// IsLive reports whether the offer is still being negotiated.
func (s Status) IsLive() bool {
	return s == StatusPending || s == StatusCounterOfferPending
}

// IsAccepted reports whether an accept has already won the offer.
func (s Status) IsAccepted() bool {
	return s == StatusAwaitingCompletion || s == StatusCompleted
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// Valid reports whether s is a known offer status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCounterOfferPending, StatusAwaitingCompletion,
		StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Actor is an already-authenticated caller.
type Actor struct {
	ID uuid.UUID
}

// SystemActor performs sweeper transitions.
var SystemActor = Actor{ID: uuid.Nil}

// IsSystem reports whether a is the system actor.
func (a Actor) IsSystem() bool {
	return a.ID == uuid.Nil
}

// Offer is one buyer's negotiation thread against one item.
type Offer struct {
	ID                 uuid.UUID        `json:"id"`
	ItemID             uuid.UUID        `json:"itemId"`
	BuyerID            uuid.UUID        `json:"buyerId"`
	OfferAmount        decimal.Decimal  `json:"offerAmount"`
	CounterOfferAmount *decimal.Decimal `json:"counterOfferAmount,omitempty"`
	AgreedAmount       *decimal.Decimal `json:"agreedAmount,omitempty"`
	Status             Status           `json:"status"`
	ExpiresAt          *time.Time       `json:"expiresAt,omitempty"`
	Version            int64            `json:"version"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// New creates a PENDING offer.
func New(itemID, buyerID uuid.UUID, amount decimal.Decimal, expiresAt, now time.Time) *Offer {
	return &Offer{
		ID:          uuid.New(),
		ItemID:      itemID,
		BuyerID:     buyerID,
		OfferAmount: amount,
		Status:      StatusPending,
		ExpiresAt:   &expiresAt,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CurrentAmount is the amount on the table: the counter if one is outstanding.
func (o *Offer) CurrentAmount() decimal.Decimal {
	if o.CounterOfferAmount != nil {
		return *o.CounterOfferAmount
	}
	return o.OfferAmount
}

// FinalPrice is the agreed amount once accepted, otherwise the current amount.
func (o *Offer) FinalPrice() decimal.Decimal {
	if o.AgreedAmount != nil {
		return *o.AgreedAmount
	}
	return o.CurrentAmount()
}

// IsExpired reports whether a live offer has passed its deadline.
func (o *Offer) IsExpired(now time.Time) bool {
	return o.Status.IsLive() && IsExpired(o.ExpiresAt, now)
}

// Clone returns a deep copy.
func (o *Offer) Clone() *Offer {
	c := *o
	if o.CounterOfferAmount != nil {
		v := *o.CounterOfferAmount
		c.CounterOfferAmount = &v
	}
	if o.AgreedAmount != nil {
		v := *o.AgreedAmount
		c.AgreedAmount = &v
	}
	if o.ExpiresAt != nil {
		v := *o.ExpiresAt
		c.ExpiresAt = &v
	}
	return &c
}
