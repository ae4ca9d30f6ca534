package gateway

import (
	"context"
	"time"
)

// pollUntil calls fn up to attempts times with a fixed delay between calls,
// stopping when fn reports done. It returns the number of calls made and
// whether fn finished.
func pollUntil(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) bool) (int, bool, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 1; ; attempt++ {
		if fn(ctx) {
			return attempt, true, nil
		}
		if attempt >= attempts {
			return attempt, false, nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, false, ctx.Err()
		case <-timer.C:
		}
	}
}
