package offer

import (
	"fmt"
	"time"
)

// IsExpired reports whether now is past expiresAt. A nil deadline never expires.
func IsExpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && now.After(*expiresAt)
}

// ExpiryPolicy bounds how long a live offer may wait for an answer.
type ExpiryPolicy struct {
	Default time.Duration
	Min     time.Duration
	Max     time.Duration
}

// DefaultExpiryPolicy returns the marketplace defaults.
func DefaultExpiryPolicy() ExpiryPolicy {
	return ExpiryPolicy{
		Default: 60 * time.Minute,
		Min:     time.Minute,
		Max:     24 * time.Hour,
	}
}

// Validate checks the bounds are coherent.
func (p ExpiryPolicy) Validate() error {
	if p.Min <= 0 {
		return fmt.Errorf("expiry min must be positive")
	}
	if p.Max < p.Min {
		return fmt.Errorf("expiry max %s is below min %s", p.Max, p.Min)
	}
	if p.Default < p.Min || p.Default > p.Max {
		return fmt.Errorf("expiry default %s is outside [%s, %s]", p.Default, p.Min, p.Max)
	}
	return nil
}

// Deadline computes the expiry for a status entered at now. Nil minutes uses the default.
func (p ExpiryPolicy) Deadline(now time.Time, minutes *int) (time.Time, error) {
	ttl := p.Default
	if minutes != nil {
		hi := int64(p.Max / time.Minute)
		// Range check before converting so huge inputs cannot wrap around.
		m := int64(*minutes)
		if m < 0 || m > hi || time.Duration(m)*time.Minute < p.Min {
			return time.Time{}, fmt.Errorf("%w: expiry must be between %d and %d minutes",
				ErrInvalidInput, int64(p.Min/time.Minute), hi)
		}
		ttl = time.Duration(m) * time.Minute
	}
	return now.Add(ttl), nil
}
