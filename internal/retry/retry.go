// Package retry provides an exponential-backoff helper for operations that may
// transiently fail: outbound key-set fetches, store writes, anything the caller
// considers retryable as a whole.
package retry

import (
	"context"
	"errors"
	"time"

	"claimiq.io/internal/obs"
)

// permanentError wraps an outcome the retrier must not retry.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as a definitive outcome rather than a transient
// failure. Do returns it immediately, unwrapped, without spending retries.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retrier runs an operation up to Retries additional times after the first
// failure. The delay before retry k (0-indexed) is Base * 2^k, with no jitter.
// No delay is scheduled after the final failure.
type Retrier struct {
	Retries int
	Base    time.Duration

	// sleep is swapped out in tests to record delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a Retrier with the given retry budget and base delay.
func New(retries int, base time.Duration) *Retrier {
	return &Retrier{Retries: retries, Base: base, sleep: wait}
}

// Do runs op until it succeeds or the retry budget is exhausted, returning the
// zero value and the last-seen error unwrapped. Every non-final failure is
// logged with the attempt number and the computed delay.
func Do[T any](ctx context.Context, r *Retrier, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	sleep := r.sleep
	if sleep == nil {
		sleep = wait
	}
	var lastErr error
	for attempt := 0; attempt <= r.Retries; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			return zero, pe.err
		}
		lastErr = err
		if attempt == r.Retries {
			break
		}
		delay := r.Base << uint(attempt)
		obs.LogEntry(map[string]any{
			"ts":       time.Now().UTC().Format(time.RFC3339Nano),
			"level":    "warn",
			"msg":      "retrying_operation",
			"op":       name,
			"attempt":  attempt + 1,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		})
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
