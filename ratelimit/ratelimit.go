// Package ratelimit enforces per-domain politeness with a token
// bucket: capacity = burst, refill = one token per configured minimum
// delay. Bucket state lives in redis so replicas share budgets; when
// the store is unreachable each process falls back to local buckets.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/r3co87/iris/logger"
)

const keyPrefix = "rate:bucket:"

// tokenBucketScript atomically refills and consumes one token.
// Returns 1 when a token was taken, or the negated wait in
// milliseconds until the next token is available.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(data[1])
local last = tonumber(data[2])

if tokens == nil then
    tokens = burst
    last = now
end

local elapsed = now - last
if elapsed < 0 then
    elapsed = 0
end
tokens = math.min(burst, tokens + elapsed * rate)

if tokens >= 1 then
    tokens = tokens - 1
    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', now)
    redis.call('EXPIRE', key, 3600)
    return 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', now)
redis.call('EXPIRE', key, 3600)
return -math.ceil((1 - tokens) / rate)
`)

// Limiter hands out per-domain tokens, suspending callers until one is
// available.
type Limiter struct {
	client   *redis.Client
	minDelay time.Duration
	burst    int
	logger   logger.Logger

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

// Config holds rate limiter parameters.
type Config struct {
	// MinDelay is the refill interval: one token per MinDelay.
	MinDelay time.Duration
	// Burst is the bucket capacity.
	Burst int
}

// New creates a Limiter. A nil redis client skips the distributed
// store and uses local buckets only.
func New(client *redis.Client, cfg Config, log logger.Logger) *Limiter {
	if log == nil {
		log = logger.Noop()
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &Limiter{
		client:   client,
		minDelay: cfg.MinDelay,
		burst:    cfg.Burst,
		logger:   log,
		local:    make(map[string]*rate.Limiter),
	}
}

// Acquire blocks until a token is available for the domain or the
// context is done.
func (l *Limiter) Acquire(ctx context.Context, domain string) error {
	return l.AcquireWithDelay(ctx, domain, l.minDelay)
}

// AcquireWithDelay acquires a token for the domain with the refill
// interval stretched to at least minDelay. Origins declaring a
// robots.txt crawl-delay above the configured minimum are throttled at
// their declared pace; the configured minimum is never undercut.
func (l *Limiter) AcquireWithDelay(ctx context.Context, domain string, minDelay time.Duration) error {
	if minDelay < l.minDelay {
		minDelay = l.minDelay
	}

	if l.client != nil {
		if err := l.acquireRedis(ctx, domain, minDelay); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return err
		}
		// Store failure: fall through to the local bucket.
	}
	return l.acquireLocal(ctx, domain, minDelay)
}

// acquireRedis loops over the atomic bucket script, sleeping the wait
// it reports until a token is granted.
func (l *Limiter) acquireRedis(ctx context.Context, domain string, minDelay time.Duration) error {
	// Tokens per millisecond.
	delayMS := minDelay.Milliseconds()
	if delayMS < 1 {
		delayMS = 1
	}
	tokenRate := 1.0 / float64(delayMS)

	for {
		result, err := tokenBucketScript.Run(ctx, l.client,
			[]string{keyPrefix + domain},
			time.Now().UnixMilli(), tokenRate, l.burst,
		).Int64()
		if err != nil {
			l.logger.Warn("rate limit store unavailable, using local bucket", "domain", domain, "error", err)
			return err
		}

		if result == 1 {
			return nil
		}

		wait := time.Duration(-result) * time.Millisecond
		l.logger.Debug("rate limiting", "domain", domain, "wait_ms", wait.Milliseconds())

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// acquireLocal waits on the in-process bucket for the domain.
func (l *Limiter) acquireLocal(ctx context.Context, domain string, minDelay time.Duration) error {
	limit := rate.Every(minDelay)

	l.mu.Lock()
	limiter, ok := l.local[domain]
	if !ok {
		limiter = rate.NewLimiter(limit, l.burst)
		l.local[domain] = limiter
	} else if limiter.Limit() != limit {
		limiter.SetLimit(limit)
	}
	l.mu.Unlock()

	return limiter.Wait(ctx)
}
