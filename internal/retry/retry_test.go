package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type waitErr struct{ d time.Duration }

func (w waitErr) Error() string             { return "slow down" }
func (w waitErr) RetryAfter() time.Duration { return w.d }

func newTestPolicy(attempts int) (*Policy, *[]time.Duration) {
	var waits []time.Duration
	p := New(Config{MaxAttempts: attempts, Base: 100 * time.Millisecond, Max: time.Second}, nil)
	p.jitter = func(d time.Duration) time.Duration { return d }
	p.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return p, &waits
}

func TestDo_SucceedsAfterTransient(t *testing.T) {
	p, waits := newTestPolicy(4)
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("timeout"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *waits)
}

func TestDo_NonTransientPassesThrough(t *testing.T) {
	p, waits := newTestPolicy(4)
	notFound := errors.New("404")
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return notFound
	})
	assert.Same(t, notFound, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
}

func TestDo_ExhaustionKeepsClassification(t *testing.T) {
	p, _ := newTestPolicy(3)
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return RateLimited(errors.New("HTTP 429"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, ErrTransient)
}

func TestDo_HonorsRetryAfter(t *testing.T) {
	p, waits := newTestPolicy(2)
	_ = p.Do(context.Background(), func(context.Context) error {
		return RateLimited(waitErr{d: 5 * time.Second})
	})
	// capped at Max
	assert.Equal(t, []time.Duration{time.Second}, *waits)
}

func TestDo_StopsOnCancellation(t *testing.T) {
	p, _ := newTestPolicy(5)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return Transient(errors.New("reset"))
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoff_Capped(t *testing.T) {
	p, _ := newTestPolicy(10)
	assert.Equal(t, 800*time.Millisecond, p.Backoff(4))
	assert.Equal(t, time.Second, p.Backoff(8))
}

func TestEqualJitter_Bounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := equalJitter(time.Second)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(errors.New("x")))
	assert.True(t, Retryable(Transient(errors.New("x"))))
	assert.True(t, Retryable(RateLimited(nil)))
}
