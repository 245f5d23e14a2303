package watch

import (
	"context"
	"time"
)

// withRetry runs fn up to maxRetries+1 times, doubling the delay between
// attempts. Context cancellation wins over the backoff timer.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	var err error
	for attempt, delay := 0, baseDelay; ; attempt, delay = attempt+1, delay*2 {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}
		if waitErr := sleepCtx(ctx, delay); waitErr != nil {
			return waitErr
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
