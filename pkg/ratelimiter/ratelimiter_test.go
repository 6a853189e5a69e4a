package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versecraft/api/pkg/ratelimiter"
)

func newTestBucket(t *testing.T, cfg ratelimiter.Config) *ratelimiter.Bucket {
	t.Helper()
	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(store.Close)
	tb, err := ratelimiter.NewBucket(store, cfg)
	require.NoError(t, err)
	return tb
}

func TestBucket_Allow(t *testing.T) {
	t.Parallel()

	t.Run("consumes until exhausted", func(t *testing.T) {
		t.Parallel()

		tb := newTestBucket(t, ratelimiter.Config{
			Capacity:       3,
			RefillRate:     3,
			RefillInterval: time.Hour,
		})

		for i := 0; i < 3; i++ {
			res, err := tb.Allow(context.Background(), "ip-1")
			require.NoError(t, err)
			assert.True(t, res.Allowed(), "request %d should pass", i)
		}

		res, err := tb.Allow(context.Background(), "ip-1")
		require.NoError(t, err)
		assert.False(t, res.Allowed())
		assert.Positive(t, res.RetryAfter())
	})

	t.Run("keys are independent", func(t *testing.T) {
		t.Parallel()

		tb := newTestBucket(t, ratelimiter.Config{
			Capacity:       1,
			RefillRate:     1,
			RefillInterval: time.Hour,
		})

		res, err := tb.Allow(context.Background(), "ip-1")
		require.NoError(t, err)
		require.True(t, res.Allowed())

		res, err = tb.Allow(context.Background(), "ip-1")
		require.NoError(t, err)
		require.False(t, res.Allowed())

		res, err = tb.Allow(context.Background(), "ip-2")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
	})

	t.Run("refills after interval", func(t *testing.T) {
		t.Parallel()

		tb := newTestBucket(t, ratelimiter.Config{
			Capacity:       1,
			RefillRate:     1,
			RefillInterval: 30 * time.Millisecond,
		})

		res, err := tb.Allow(context.Background(), "ip-1")
		require.NoError(t, err)
		require.True(t, res.Allowed())

		res, err = tb.Allow(context.Background(), "ip-1")
		require.NoError(t, err)
		require.False(t, res.Allowed())

		time.Sleep(40 * time.Millisecond)

		res, err = tb.Allow(context.Background(), "ip-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
	})

	t.Run("reset clears state", func(t *testing.T) {
		t.Parallel()

		tb := newTestBucket(t, ratelimiter.Config{
			Capacity:       1,
			RefillRate:     1,
			RefillInterval: time.Hour,
		})

		_, err := tb.Allow(context.Background(), "ip-1")
		require.NoError(t, err)
		require.NoError(t, tb.Reset(context.Background(), "ip-1"))

		res, err := tb.Allow(context.Background(), "ip-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
	})

	t.Run("status does not consume", func(t *testing.T) {
		t.Parallel()

		tb := newTestBucket(t, ratelimiter.Config{
			Capacity:       2,
			RefillRate:     2,
			RefillInterval: time.Hour,
		})

		res, err := tb.Status(context.Background(), "ip-1")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Remaining)

		res, err = tb.Status(context.Background(), "ip-1")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Remaining)
	})

	t.Run("invalid token count", func(t *testing.T) {
		t.Parallel()

		tb := newTestBucket(t, ratelimiter.Config{
			Capacity:       1,
			RefillRate:     1,
			RefillInterval: time.Hour,
		})

		_, err := tb.AllowN(context.Background(), "ip-1", 0)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
	})
}

func TestNewBucket_InvalidConfig(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(store.Close)

	for _, cfg := range []ratelimiter.Config{
		{Capacity: 0, RefillRate: 1, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 0, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 1, RefillInterval: 0},
	} {
		_, err := ratelimiter.NewBucket(store, cfg)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	}
}
