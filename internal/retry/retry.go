// Package retry wraps transient I/O in a bounded retry with exponential
// backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 100 * time.Millisecond
)

// Policy is a bounded retry strategy. It holds no state between calls and
// is safe to share.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Default returns the policy used when none is configured.
func Default() Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultDelay}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do runs op until it succeeds, returns a permanent error, or the attempts
// are exhausted. The last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return WithBackoff(ctx, attempts, p.Delay, func(int) (bool, error) {
		err := op(ctx)
		if err == nil {
			return false, nil
		}
		if pe, ok := err.(*permanentError); ok {
			return false, pe.err
		}
		if IsPermanent(err) {
			return false, err
		}
		return true, err
	})
}

// WithBackoff retries op up to maxAttempts times with exponential backoff.
// It checks ctx between attempts.
//
// op returns (retry bool, err error). If retry is false, err is returned
// immediately (nil on success, non-nil on permanent failure).
func WithBackoff(
	ctx context.Context,
	maxAttempts int,
	baseBackoff time.Duration,
	op func(attempt int) (retry bool, err error),
) error {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			if err := sleep(ctx, baseBackoff*time.Duration(1<<(attempt-1))); err != nil {
				return fmt.Errorf("retry aborted: %w", err)
			}
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
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
