package offer

import "github.com/haggle-hub/haggle-hub/internal/domain/item"

// Counts holds the number of offers per status for one item.
type Counts map[Status]int

// Live returns the number of unresolved offers.
func (c Counts) Live() int {
	return c[StatusPending] + c[StatusCounterOfferPending]
}

// DeriveItemStatus computes the item status implied by its offers.
// Pending offers never reserve an item; only acceptance does.
func DeriveItemStatus(current item.Status, counts Counts) item.Status {
	switch {
	case counts[StatusCompleted] > 0:
		return item.StatusSold
	case counts[StatusAwaitingCompletion] > 0:
		return item.StatusReserved
	case counts.Live() == 0:
		return item.StatusActive
	default:
		return current
	}
}
