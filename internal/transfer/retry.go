package transfer

import (
	"context"
	"time"

	"github.com/docpipe/docpipe/internal/store"
)

// Policy configures bounded exponential backoff for one retry scope.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // backoff cap
}

// retryWithBackoff runs fn up to MaxAttempts times, doubling the delay
// between attempts. Non-retryable errors (not found, forbidden, plain
// unexpected) fail immediately without consuming the retry budget.
// Context cancellation aborts the wait.
func retryWithBackoff[T any](ctx context.Context, policy Policy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := policy.BaseDelay

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !store.Retryable(err) {
			return zero, err
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt < policy.MaxAttempts {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if policy.MaxDelay > 0 && delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		}
	}

	return zero, lastErr
}
