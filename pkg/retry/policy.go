package retry

import (
	"errors"
	"math/rand"
	"time"
)

// ErrMaxRetriesExceeded is returned when every attempt failed with a retryable error
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Policy configures bounded exponential backoff
type Policy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	Jitter        float64 // fraction of the delay, 0 disables
	RetryableFunc func(error) bool
}

// DefaultPolicy returns the policy used for wallet provider calls
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
	}
}

// Validate checks the policy for nonsensical values
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return errors.New("max retries must not be negative")
	}
	if p.InitialDelay < 0 || p.MaxDelay < 0 {
		return errors.New("delays must not be negative")
	}
	if p.MaxDelay > 0 && p.InitialDelay > p.MaxDelay {
		return errors.New("initial delay exceeds max delay")
	}
	if p.Multiplier < 1 {
		return errors.New("multiplier must be at least 1")
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return errors.New("jitter must be within [0, 1]")
	}
	return nil
}

// Backoff computes the wait before a given attempt
type Backoff struct {
	policy Policy
}

// NewBackoff creates a backoff calculator for policy
func NewBackoff(policy Policy) *Backoff {
	return &Backoff{policy: policy}
}

// Calculate returns the delay before attempt n (1-based)
func (b *Backoff) Calculate(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	delay := float64(b.policy.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= b.policy.Multiplier
		if b.policy.MaxDelay > 0 && delay >= float64(b.policy.MaxDelay) {
			delay = float64(b.policy.MaxDelay)
			break
		}
	}
	if b.policy.Jitter > 0 {
		delay += delay * b.policy.Jitter * (rand.Float64()*2 - 1)
	}
	if b.policy.MaxDelay > 0 && delay > float64(b.policy.MaxDelay) {
		delay = float64(b.policy.MaxDelay)
	}
	return time.Duration(delay)
}
