package stream

import (
	"context"
	"time"
)

// BackoffDelay computes the delay before retry attempt n as
// min(base * 2^n, max). The result is monotonically non-decreasing
// in n.
func BackoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
// Returns the context error when cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
