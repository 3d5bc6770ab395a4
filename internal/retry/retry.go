// Package retry wraps fallible broker calls in a fixed attempt budget with a
// fixed delay between attempts. There is no backoff growth and no jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 3 * time.Second
)

// ErrMaxRetries is returned once the attempt budget is exhausted. The error
// returned by Do wraps both ErrMaxRetries and the last attempt's error.
var ErrMaxRetries = errors.New("max retry attempts reached")

// Policy is the attempt budget applied by Do.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPolicy returns 3 attempts spaced 3 seconds apart.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultDelay}
}

// Option overrides a field of the default policy.
type Option func(*Policy)

// WithAttempts sets the maximum number of attempts.
func WithAttempts(n int) Option {
	return func(p *Policy) { p.Attempts = n }
}

// WithDelay sets the wait between attempts.
func WithDelay(d time.Duration) Option {
	return func(p *Policy) { p.Delay = d }
}

// WithPolicy replaces the whole policy.
func WithPolicy(policy Policy) Option {
	return func(p *Policy) { *p = policy }
}

// Do invokes fn until it succeeds or the attempt budget is spent, sleeping
// the policy delay between attempts. A cancelled ctx stops the wait early and
// the returned error wraps ctx.Err().
func Do[T any](ctx context.Context, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	p := DefaultPolicy()
	for _, opt := range opts {
		opt(&p)
	}
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == p.Attempts {
			break
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry aborted after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}
	}
	return zero, fmt.Errorf("%w (%d attempts): %w", ErrMaxRetries, p.Attempts, lastErr)
}
