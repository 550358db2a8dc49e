package utils

import (
	"context"
	"errors"
	"time"

	"content-pipeline/infrastructure/logger"
)

// RetryPolicy bounds a remote call: Retries extra attempts after the first,
// each limited to Timeout, with Backoff × attempt between them.
type RetryPolicy struct {
	Retries int
	Backoff time.Duration
	Timeout time.Duration
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Retries: 2, Backoff: 500 * time.Millisecond, Timeout: 10 * time.Second}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error as is.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a Permanent error, or the attempts
// run out. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, p.Backoff*time.Duration(attempt)); err != nil {
				return errors.Join(lastErr, err)
			}
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
		logger.GetLogger().
			WithField("attempt", attempt+1).
			WithField("error", err.Error()).
			Debug("Remote call attempt failed")
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
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
