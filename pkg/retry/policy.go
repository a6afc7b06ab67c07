package retry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMaxRetriesExceeded is returned once every attempt has failed
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Policy describes how many times and how far apart an operation is retried.
// MaxRetries counts retries after the first attempt.
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	RetryableFunc  func(error) bool
}

// DefaultPolicy returns 3 attempts with 2s, 4s backoff capped at 8s
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     2,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2,
	}
}

// Validate checks the policy for obviously wrong values
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.InitialBackoff < 0 {
		return fmt.Errorf("initial backoff must be >= 0, got %s", p.InitialBackoff)
	}
	if p.MaxBackoff > 0 && p.MaxBackoff < p.InitialBackoff {
		return fmt.Errorf("max backoff %s is below initial backoff %s", p.MaxBackoff, p.InitialBackoff)
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1, got %v", p.Multiplier)
	}
	return nil
}

// Backoff computes exponential delays for a policy
type Backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
}

// NewBackoff creates a backoff calculator for the policy
func NewBackoff(policy Policy) *Backoff {
	multiplier := policy.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}
	return &Backoff{
		initial:    policy.InitialBackoff,
		max:        policy.MaxBackoff,
		multiplier: multiplier,
	}
}

// Calculate returns the wait before retry number attempt (1-based)
func (b *Backoff) Calculate(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(b.initial) * math.Pow(b.multiplier, float64(attempt-1)))
	if b.max > 0 && d > b.max {
		return b.max
	}
	return d
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
