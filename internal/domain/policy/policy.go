package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/shopspring/decimal"
)

// DefaultAmountRule admits any positive amount.
const DefaultAmountRule = "amount > 0"

var ErrRuleNotBoolean = errors.New("amount rule did not evaluate to boolean")

// AmountInput is what an amount rule can see.
type AmountInput struct {
	Amount      decimal.Decimal
	AskingPrice decimal.Decimal
	Role        string
}

// AmountRule admits or refuses proposed offer and counter amounts.
type AmountRule struct {
	source string
	expr   *govaluate.EvaluableExpression
}

// NewAmountRule compiles expression. Empty uses DefaultAmountRule.
// Variables: amount, asking_price, role.
func NewAmountRule(expression string) (*AmountRule, error) {
	src := strings.TrimSpace(expression)
	if src == "" {
		src = DefaultAmountRule
	}
	expr, err := govaluate.NewEvaluableExpression(src)
	if err != nil {
		return nil, fmt.Errorf("compile amount rule %q: %w", src, err)
	}
	return &AmountRule{source: src, expr: expr}, nil
}

// MustAmountRule is NewAmountRule for known-good expressions.
func MustAmountRule(expression string) *AmountRule {
	r, err := NewAmountRule(expression)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the rule source.
func (r *AmountRule) String() string {
	return r.source
}

// Admit evaluates the rule. Amounts are never admitted unless positive, whatever the rule says.
func (r *AmountRule) Admit(in AmountInput) (bool, error) {
	if !in.Amount.IsPositive() {
		return false, nil
	}
	amount, _ := in.Amount.Float64()
	asking, _ := in.AskingPrice.Float64()
	result, err := r.expr.Evaluate(map[string]interface{}{
		"amount":       amount,
		"asking_price": asking,
		"role":         in.Role,
	})
	if err != nil {
		return false, err
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, ErrRuleNotBoolean
	}
	return ok, nil
}
