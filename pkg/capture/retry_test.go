package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func TestRetryPolicy_SucceedsOnThirdAttempt(t *testing.T) {
	clock := &fakeClock{}
	var seen []int
	ok, err := RetryPolicy{Attempts: 3, Backoff: time.Second}.Do(context.Background(), clock, func(attempt int) bool {
		seen = append(seen, attempt)
		return attempt == 3
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.Sleeps())
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	clock := &fakeClock{}
	calls := 0
	ok, err := RetryPolicy{Attempts: 3, Backoff: 2 * time.Second}.Do(context.Background(), clock, func(int) bool {
		calls++
		return false
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, calls)
	assert.Len(t, clock.Sleeps(), 2, "no sleep after the last attempt")
}

func TestRetryPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, _ = RetryPolicy{}.Do(context.Background(), &fakeClock{}, func(int) bool { calls++; return false })
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	ok, err := RetryPolicy{Attempts: 5, Backoff: time.Second}.Do(ctx, &fakeClock{}, func(int) bool {
		calls++
		cancel()
		return false
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRealClock(t *testing.T) {
	c := realClock{}
	assert.NoError(t, c.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Sleep(ctx, time.Hour), context.Canceled)
}
