package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// withRetry runs fn up to 1+RetryAttempts times with a flat RetryDelay pause
// between attempts. The delay is fixed rather than exponential on purpose:
// the attempt counts are small and a predictable worst-case latency matters
// more at the edge than backoff politeness.
//
// Context errors are never retried, and the pause aborts as soon as the
// caller's context is done, so a disconnected client does not keep a retry
// loop running.
func (l *Limiter) withRetry(ctx context.Context, op, clientID string, fn func(context.Context) error) error {
	err := fn(ctx)
	for attempt := 1; err != nil && attempt <= l.cfg.RetryAttempts; attempt++ {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		l.logger.Warn("store operation failed, retrying",
			"op", op,
			"client_id", clientID,
			"correlation_id", CorrelationIDFromContext(ctx),
			"attempt", attempt,
			"max_attempts", l.cfg.RetryAttempts,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.RetryDelay):
		}

		err = fn(ctx)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s failed after %d attempts: %v", ErrStoreUnavailable, op, l.cfg.RetryAttempts+1, err)
}
