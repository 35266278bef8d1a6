package app

import (
	"context"
	"time"

	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
)

// backoffFunc returns the delay before the given (1-based) retry
type backoffFunc func(attempt int) time.Duration

// withRetry runs fn up to maxAttempts times. Only errors classified as
// transient are retried. Cancellation during a backoff delay returns the
// context error.
func withRetry[T any](ctx context.Context, logger *zap.Logger, backoff backoffFunc, op string, maxAttempts int, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !domain.IsTransient(err) || attempt == maxAttempts {
			break
		}

		delay := backoff(attempt)
		logger.Warn("Transient failure, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		if err := waitBackoff(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

func waitBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
