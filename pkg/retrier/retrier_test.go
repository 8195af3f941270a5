package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instant records requested waits and fires immediately.
func instant(r *Retrier) *[]time.Duration {
	var waits []time.Duration
	r.after = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	return &waits
}

func TestRetrier_Do(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		r := New()
		waits := instant(r)
		calls := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Empty(t, *waits)
	})

	t.Run("success after retries", func(t *testing.T) {
		r := New(WithAttempts(4))
		waits := instant(r)
		calls := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("fail")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
	})

	t.Run("returns last error after all attempts", func(t *testing.T) {
		r := New()
		waits := instant(r)
		calls := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return errors.New("fail")
		})
		assert.EqualError(t, err, "fail")
		assert.Equal(t, 3, calls)
		assert.Equal(t, 3, r.Attempts())
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		r := New(WithAttempts(5))
		instant(r)
		cause := errors.New("bad request")
		calls := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return Permanent(cause)
		})
		assert.ErrorIs(t, err, cause)
		assert.False(t, IsPermanent(err))
		assert.True(t, IsPermanent(Permanent(cause)))
		assert.NoError(t, Permanent(nil))
		assert.Equal(t, 1, calls)
	})

	t.Run("on retry callback", func(t *testing.T) {
		var seen []int
		r := New(WithOnRetry(func(attempt int, err error) { seen = append(seen, attempt) }))
		instant(r)
		_ = r.Do(context.Background(), func(ctx context.Context) error {
			return errors.New("fail")
		})
		assert.Equal(t, []int{1, 2}, seen)
	})

	t.Run("context cancellation", func(t *testing.T) {
		r := New(WithAttempts(5), WithInitialDelay(time.Hour))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := r.Do(ctx, func(ctx context.Context) error {
			calls++
			return errors.New("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestRetrier_Delay(t *testing.T) {
	r := New(WithInitialDelay(time.Second), WithMaxDelay(5*time.Second))
	assert.Equal(t, time.Second, r.delay(1))
	assert.Equal(t, 2*time.Second, r.delay(2))
	assert.Equal(t, 4*time.Second, r.delay(3))
	assert.Equal(t, 5*time.Second, r.delay(4))
	assert.Equal(t, 5*time.Second, r.delay(10))

	assert.Equal(t, time.Duration(0), New(WithInitialDelay(0)).delay(3))
}

func TestRetrier_DoWithData(t *testing.T) {
	r := New()
	instant(r)
	val, err := DoWithData(r, context.Background(), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)

	val, err = DoWithData(r, context.Background(), func(ctx context.Context) (string, error) {
		return "", errors.New("fail")
	})
	assert.Error(t, err)
	assert.Empty(t, val)
}
