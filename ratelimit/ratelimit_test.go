package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3co87/iris/logger"
)

func setupLimiter(t *testing.T, cfg Config) *Limiter {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, cfg, logger.Noop())
}

func TestAcquireWithinBurst(t *testing.T) {
	l := setupLimiter(t, Config{MinDelay: time.Second, Burst: 3})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx, "example.com"))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond, "burst tokens granted without waiting")
}

func TestAcquireWaitsAfterBurstExhausted(t *testing.T) {
	l := setupLimiter(t, Config{MinDelay: 200 * time.Millisecond, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "example.com"))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx, "example.com"))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestAcquireSequentialLowerBound(t *testing.T) {
	const (
		n        = 4
		burst    = 1
		minDelay = 100 * time.Millisecond
	)
	l := setupLimiter(t, Config{MinDelay: minDelay, Burst: burst})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < n; i++ {
		require.NoError(t, l.Acquire(ctx, "example.com"))
	}

	wantMin := time.Duration(n-burst) * minDelay
	assert.GreaterOrEqual(t, time.Since(start), wantMin-20*time.Millisecond)
}

func TestAcquireWithDelayStretchesRefill(t *testing.T) {
	l := setupLimiter(t, Config{MinDelay: 10 * time.Millisecond, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.AcquireWithDelay(ctx, "example.com", 200*time.Millisecond))

	start := time.Now()
	require.NoError(t, l.AcquireWithDelay(ctx, "example.com", 200*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond, "declared crawl delay slows the refill")
}

func TestAcquireWithDelayNeverBelowConfigured(t *testing.T) {
	l := New(nil, Config{MinDelay: 100 * time.Millisecond, Burst: 1}, logger.Noop())
	ctx := context.Background()

	require.NoError(t, l.AcquireWithDelay(ctx, "example.com", time.Millisecond))

	start := time.Now()
	require.NoError(t, l.AcquireWithDelay(ctx, "example.com", time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "configured minimum still applies")
}

func TestIndependentDomains(t *testing.T) {
	l := setupLimiter(t, Config{MinDelay: time.Second, Burst: 1})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Acquire(ctx, "one.com"))
	require.NoError(t, l.Acquire(ctx, "two.com"))
	require.NoError(t, l.Acquire(ctx, "three.com"))
	assert.Less(t, time.Since(start), 500*time.Millisecond, "distinct domains do not contend")
}

func TestFallbackToLocalWhenStoreDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := New(client, Config{MinDelay: 100 * time.Millisecond, Burst: 1}, logger.Noop())
	mr.Close()

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "example.com"))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx, "example.com"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "local bucket still rate limits")
}

func TestAcquireLocalOnly(t *testing.T) {
	l := New(nil, Config{MinDelay: 100 * time.Millisecond, Burst: 1}, logger.Noop())
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "example.com"))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx, "example.com"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestAcquireContextCancelled(t *testing.T) {
	l := setupLimiter(t, Config{MinDelay: 10 * time.Second, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "example.com"))

	cancelCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	err := l.Acquire(cancelCtx, "example.com")
	assert.Error(t, err)
}
