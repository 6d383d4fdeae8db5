package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// RetryController wraps upstream calls with bounded exponential backoff for
// rate-limited responses. Any other failure propagates immediately. The
// retry is an explicit bounded loop; the backoff policy supplies the delay
// sequence (baseDelay, 2x, 4x, ... without jitter).
type RetryController struct {
	maxAttempts int
	baseDelay   time.Duration
}

// RetryOption configures a RetryController.
type RetryOption func(*RetryController)

// WithMaxAttempts overrides the attempt budget.
func WithMaxAttempts(attempts int) RetryOption {
	return func(r *RetryController) {
		if attempts > 0 {
			r.maxAttempts = attempts
		}
	}
}

// WithBaseDelay overrides the first backoff delay.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(r *RetryController) {
		if delay > 0 {
			r.baseDelay = delay
		}
	}
}

// NewRetryController creates a controller with the default budget of three
// attempts starting at a one second delay.
func NewRetryController(opts ...RetryOption) *RetryController {
	r := &RetryController{
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs fn, retrying rate-limited failures with exponential backoff until
// the attempt budget is spent, then returns ErrExhausted wrapping the last
// failure. Context cancellation aborts the wait.
func (r *RetryController) Do(ctx context.Context, fn func() ([]Record, error)) ([]Record, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.baseDelay
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = r.baseDelay << uint(r.maxAttempts)

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		records, err := fn()
		if err == nil {
			return records, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return nil, err
		}
		lastErr = err

		delay := policy.NextBackOff()
		slog.Warn("Upstream rate limited, backing off",
			"attempt", attempt, "maxAttempts", r.maxAttempts, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, r.maxAttempts, lastErr)
}
