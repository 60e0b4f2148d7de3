// Package cache stores serialized fetch results in redis, keyed by
// request fingerprint. Store failures are logged and swallowed: reads
// degrade to misses and writes to no-ops, so an unreachable store never
// fails a fetch.
package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/r3co87/iris/logger"
)

const keyPrefix = "fetch:cache:"

// Cache is a redis-backed response cache.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
	logger  logger.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Config holds cache configuration.
type Config struct {
	TTL     time.Duration
	Enabled bool
}

// New creates a Cache backed by the given redis client. A nil client
// disables the cache entirely.
func New(client *redis.Client, cfg Config, log logger.Logger) *Cache {
	if log == nil {
		log = logger.Noop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}

	return &Cache{
		client:  client,
		ttl:     cfg.TTL,
		enabled: cfg.Enabled && client != nil,
		logger:  log,
	}
}

// Enabled reports whether the cache is configured and backed by a store.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Get returns the serialized result for a fingerprint, or nil on miss.
// Store errors count as misses.
func (c *Cache) Get(ctx context.Context, fingerprint string) []byte {
	if !c.enabled {
		return nil
	}

	data, err := c.client.Get(ctx, keyPrefix+fingerprint).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", "fingerprint", fingerprint, "error", err)
		}
		c.misses.Add(1)
		return nil
	}

	c.hits.Add(1)
	return data
}

// Set stores a serialized result under a fingerprint. ttl <= 0 selects
// the configured default. Store errors are logged and swallowed.
func (c *Cache) Set(ctx context.Context, fingerprint string, data []byte, ttl time.Duration) {
	if !c.enabled {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	if err := c.client.Set(ctx, keyPrefix+fingerprint, data, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "fingerprint", fingerprint, "error", err)
	}
}

// Invalidate removes a cached entry. Returns true when an entry was
// deleted. Idempotent: missing entries and store errors return false.
func (c *Cache) Invalidate(ctx context.Context, fingerprint string) bool {
	if !c.enabled {
		return false
	}

	deleted, err := c.client.Del(ctx, keyPrefix+fingerprint).Result()
	if err != nil {
		c.logger.Warn("cache invalidate failed", "fingerprint", fingerprint, "error", err)
		return false
	}
	return deleted > 0
}

// Ping reports whether the backing store is reachable.
func (c *Cache) Ping(ctx context.Context) bool {
	if !c.enabled {
		return false
	}
	return c.client.Ping(ctx).Err() == nil
}

// Stats returns lifetime hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
