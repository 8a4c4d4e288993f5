package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is the finalisation record of a completed negotiation.
type Transaction struct {
	ID         uuid.UUID       `json:"id"`
	OfferID    uuid.UUID       `json:"offerId"`
	ItemID     uuid.UUID       `json:"itemId"`
	BuyerID    uuid.UUID       `json:"buyerId"`
	SellerID   uuid.UUID       `json:"sellerId"`
	FinalPrice decimal.Decimal `json:"finalPrice"`
	CreatedAt  time.Time       `json:"createdAt"`
}
