package offer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount string
		valid  bool
	}{
		{"80", true},
		{"80.5", true},
		{"80.05", true},
		{"80.050", true},
		{"999999999999.99", true},
		{"80.005", false},
		{"0.001", false},
		{"0", false},
		{"-5", false},
		{"1000000000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tt.amount))
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidInput)
			}
		})
	}
}
