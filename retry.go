package rustle

import (
	"context"
	"time"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts after the first try
	BaseDelay  time.Duration // Delay before the first retry; doubles per attempt
	MaxDelay   time.Duration // Cap on the backoff delay
}

// DefaultRetryConfig returns the engine's default retry policy: up to 3
// retries with 1s, 2s, 4s backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// RetryFunc is a function that can be retried.
type RetryFunc[T any] func() (T, error)

// WithRetry executes fn with exponential backoff. Only errors classified by
// IsRetryable are retried; quota errors and cancellations stop immediately.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn RetryFunc[T]) (T, error) {
	var lastErr error
	var zero T

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, &CancelledError{Cause: ctx.Err()}
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		if attempt < cfg.MaxRetries {
			delay := cfg.BaseDelay * time.Duration(1<<attempt)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}

			select {
			case <-ctx.Done():
				return zero, &CancelledError{Cause: ctx.Err()}
			case <-time.After(delay):
			}
		}
	}

	return zero, lastErr
}
