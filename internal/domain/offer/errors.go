package offer

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized            = errors.New("actor is not allowed to perform this action")
	ErrInvalidTransition       = errors.New("action is not valid for the current offer status")
	ErrDuplicateActiveOffer    = errors.New("buyer already has an active offer on this item")
	ErrConflictAlreadyResolved = errors.New("offer was already resolved by another action")
	ErrNotFound                = errors.New("not found")
	ErrDependencyFailure       = errors.New("dependency failure")
	ErrInvalidInput            = errors.New("invalid input")

	ErrOfferExpired    = fmt.Errorf("%w: offer has expired", ErrInvalidTransition)
	ErrItemUnavailable = fmt.Errorf("%w: item is not accepting offers", ErrInvalidTransition)
)

var domainErrors = []error{
	ErrUnauthorized,
	ErrInvalidTransition,
	ErrDuplicateActiveOffer,
	ErrConflictAlreadyResolved,
	ErrNotFound,
	ErrDependencyFailure,
	ErrInvalidInput,
}

// IsDomainError reports whether err belongs to the negotiation error taxonomy.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// AsDependencyFailure wraps store and collaborator errors that are not already classified.
func AsDependencyFailure(err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDependencyFailure, err)
}
