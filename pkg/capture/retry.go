package capture

import (
	"context"
	"time"
)

// Clock sleeps. Tests swap in a clock that records instead of waiting.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryPolicy is a fixed-backoff attempt budget.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Do calls fn until it returns true or the attempts run out, sleeping Backoff
// between attempts (not after the last one). The error is only ever the
// context's.
func (p RetryPolicy) Do(ctx context.Context, clock Clock, fn func(attempt int) bool) (bool, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if fn(i) {
			return true, nil
		}
		if i == attempts {
			break
		}
		if err := clock.Sleep(ctx, p.Backoff); err != nil {
			return false, err
		}
	}
	return false, ctx.Err()
}
