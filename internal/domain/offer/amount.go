package offer

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Prices are persisted as NUMERIC(14, 2).
const (
	AmountScale         = 2
	AmountIntegerDigits = 12
)

var amountLimit = decimal.New(1, AmountIntegerDigits)

// ValidateAmount checks a price is positive and representable without rounding.
func ValidateAmount(d decimal.Decimal) error {
	switch {
	case !d.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	case !d.Equal(d.Truncate(AmountScale)):
		return fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidInput, d.String(), AmountScale)
	case d.GreaterThanOrEqual(amountLimit):
		return fmt.Errorf("%w: amount %s exceeds %d integer digits", ErrInvalidInput, d.String(), AmountIntegerDigits)
	}
	return nil
}
