package offer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is the part an actor plays for one offer.
type Role string

const (
	RoleBuyer   Role = "BUYER"
	RoleSeller  Role = "SELLER"
	RoleNeither Role = "NEITHER"
	RoleSystem  Role = "SYSTEM"
)

// Action is a negotiation step.
type Action string

const (
	ActionCreate         Action = "CREATE"
	ActionCounter        Action = "COUNTER"
	ActionAccept         Action = "ACCEPT"
	ActionReject         Action = "REJECT"
	ActionCancel         Action = "CANCEL"
	ActionConfirmReceipt Action = "CONFIRM_RECEIPT"
	ActionExpire         Action = "EXPIRE"
)

// ParseAction parses a caller-supplied action name. Expire is reserved for the sweeper.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case ActionCounter, ActionAccept, ActionReject, ActionCancel, ActionConfirmReceipt:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, s)
}

// ResolveRole maps an actor onto the offer's parties.
func ResolveRole(actor Actor, sellerID, buyerID uuid.UUID) Role {
	switch {
	case actor.IsSystem():
		return RoleNeither
	case actor.ID == sellerID:
		return RoleSeller
	case actor.ID == buyerID:
		return RoleBuyer
	default:
		return RoleNeither
	}
}

type transitionKey struct {
	from   Status
	action Action
	role   Role
}

var transitions = map[transitionKey]Status{
	{StatusPending, ActionCounter, RoleSeller}:                  StatusCounterOfferPending,
	{StatusCounterOfferPending, ActionCounter, RoleBuyer}:       StatusPending,
	{StatusPending, ActionAccept, RoleSeller}:                   StatusAwaitingCompletion,
	{StatusCounterOfferPending, ActionAccept, RoleBuyer}:        StatusAwaitingCompletion,
	{StatusPending, ActionReject, RoleSeller}:                   StatusRejected,
	{StatusCounterOfferPending, ActionReject, RoleBuyer}:        StatusRejected,
	{StatusPending, ActionCancel, RoleBuyer}:                    StatusCancelled,
	{StatusCounterOfferPending, ActionCancel, RoleSeller}:       StatusCancelled,
	{StatusAwaitingCompletion, ActionConfirmReceipt, RoleBuyer}: StatusCompleted,
	{StatusPending, ActionExpire, RoleSystem}:                   StatusRejected,
	{StatusCounterOfferPending, ActionExpire, RoleSystem}:       StatusRejected,
}

// Next returns the status reached when role performs action from the given status.
func Next(from Status, action Action, role Role) (Status, error) {
	if role == RoleNeither {
		return "", ErrUnauthorized
	}
	if to, ok := transitions[transitionKey{from: from, action: action, role: role}]; ok {
		return to, nil
	}
	for k := range transitions {
		if k.from == from && k.action == action {
			return "", ErrUnauthorized
		}
	}
	return "", ErrInvalidTransition
}

// Params carries the inputs of one transition.
type Params struct {
	Amount    *decimal.Decimal
	ExpiresAt *time.Time
	Now       time.Time
}

// Apply returns the offer produced by role performing action. The receiver is not modified.
func (o *Offer) Apply(action Action, role Role, p Params) (*Offer, error) {
	to, err := Next(o.Status, action, role)
	if err != nil {
		return nil, err
	}
	expired := IsExpired(o.ExpiresAt, p.Now)
	if action == ActionExpire && !expired {
		return nil, fmt.Errorf("%w: offer has not expired", ErrInvalidTransition)
	}
	if action != ActionExpire && o.Status.IsLive() && expired {
		return nil, ErrOfferExpired
	}

	next := o.Clone()
	next.Status = to
	next.Version = o.Version + 1
	next.UpdatedAt = p.Now

	switch action {
	case ActionCounter:
		if p.Amount == nil || !p.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: counter requires a positive amount", ErrInvalidInput)
		}
		if p.ExpiresAt == nil || !p.ExpiresAt.After(p.Now) {
			return nil, fmt.Errorf("%w: counter requires a future expiry", ErrInvalidInput)
		}
		amount := *p.Amount
		if role == RoleSeller {
			next.CounterOfferAmount = &amount
		} else {
			next.OfferAmount = amount
			next.CounterOfferAmount = nil
		}
		expiresAt := *p.ExpiresAt
		next.ExpiresAt = &expiresAt
	case ActionAccept:
		agreed := o.CurrentAmount()
		next.AgreedAmount = &agreed
		next.CounterOfferAmount = nil
	case ActionReject, ActionCancel, ActionExpire:
		next.CounterOfferAmount = nil
	}
	return next, nil
}
