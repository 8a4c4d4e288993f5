package item

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents item availability.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusReserved Status = "RESERVED"
	StatusSold     Status = "SOLD"
)

// Valid reports whether s is a known item status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusReserved, StatusSold:
		return true
	}
	return false
}

// Item represents a negotiable listing.
type Item struct {
	ID          uuid.UUID       `json:"id"`
	SellerID    uuid.UUID       `json:"sellerId"`
	Title       string          `json:"title"`
	AskingPrice decimal.Decimal `json:"askingPrice"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// New creates an ACTIVE item owned by sellerID.
func New(sellerID uuid.UUID, title string, askingPrice decimal.Decimal, now time.Time) *Item {
	return &Item{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Title:       title,
		AskingPrice: askingPrice,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsAvailable reports whether the item accepts new offers.
func (i *Item) IsAvailable() bool {
	return i.Status == StatusActive
}
