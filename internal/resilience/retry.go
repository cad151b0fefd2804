package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryConfig tunes [Retry].
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first. Zero means a
	// single attempt with no retries.
	MaxRetries int

	// InitialBackoff is the wait before the first retry; it doubles on each
	// subsequent retry. Default: 500ms.
	InitialBackoff time.Duration
}

// Retry runs fn up to 1+cfg.MaxRetries times, backing off between attempts.
// It stops early when ctx is cancelled or when fn returns an error wrapping
// [Permanent]. The last error is returned when all attempts fail.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}

	backoff := cfg.InitialBackoff
	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying after failure", "attempt", attempt, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return errors.Join(ctx.Err(), err)
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = fn(); err == nil {
			return nil
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
		if ctx.Err() != nil {
			return errors.Join(ctx.Err(), err)
		}
	}
	return err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable: [Retry] returns it immediately
// without consuming further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
