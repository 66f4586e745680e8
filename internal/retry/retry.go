// Package retry wraps fallible navigation steps with bounded attempts and
// exponential backoff. It is applied explicitly at call sites; only failures
// the policy's predicate classifies as transient are retried.
package retry

import (
	"context"
	"time"
)

// Policy describes how a step is retried. The zero value is not usable;
// construct with Default and override fields as needed.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Retryable decides whether an error is transient. A nil predicate
	// retries nothing.
	Retryable func(error) bool
	// OnRetry is invoked with the 1-based attempt number that just failed,
	// before the backoff sleep. Optional.
	OnRetry func(attempt int, err error)
}

// Default returns the policy used across the scrape pipeline: 3 attempts,
// backoff 2s, 4s, ... capped at 10s.
func Default(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
		Retryable:    retryable,
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error, the
// attempts are exhausted, or ctx is done. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := p.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}
