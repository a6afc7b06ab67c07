package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Operation is one attempt of a retried call. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// Retrier runs operations under a Policy
type Retrier struct {
	policy  Policy
	backoff *Backoff
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a new retrier. It panics on an invalid policy.
func NewRetrier(policy Policy, logger *zap.Logger) *Retrier {
	if err := policy.Validate(); err != nil {
		panic(fmt.Sprintf("invalid retry policy: %v", err))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Retrier{
		policy:  policy,
		backoff: NewBackoff(policy),
		logger:  logger,
		sleep:   sleepContext,
	}
}

// MaxAttempts is the total number of attempts including the first one
func (r *Retrier) MaxAttempts() int {
	return r.policy.MaxRetries + 1
}

// Do runs op until it succeeds, returns a non-retryable error or runs out of attempts
func (r *Retrier) Do(ctx context.Context, op Operation) error {
	var lastErr error

	for attempt := 1; attempt <= r.MaxAttempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			if attempt > 1 {
				r.logger.Info("Operation succeeded after retries",
					zap.Int("attempt", attempt),
					zap.Int("max_attempts", r.MaxAttempts()))
			}
			return nil
		}

		if !r.isRetryable(lastErr) {
			r.logger.Debug("Error is not retryable",
				zap.Error(lastErr),
				zap.Int("attempt", attempt))
			return lastErr
		}

		if attempt == r.MaxAttempts() {
			break
		}

		wait := r.backoff.Calculate(attempt)
		r.logger.Debug("Retrying operation",
			zap.Error(lastErr),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait))

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}

	r.logger.Warn("Max retries exceeded",
		zap.Error(lastErr),
		zap.Int("attempts", r.MaxAttempts()))
	return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func (r *Retrier) isRetryable(err error) bool {
	if r.policy.RetryableFunc != nil {
		return r.policy.RetryableFunc(err)
	}
	return !IsPermanent(err) && !errors.Is(err, context.Canceled)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
