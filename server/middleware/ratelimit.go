// Package middleware holds HTTP middleware for the API server.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	httprateredis "github.com/go-chi/httprate-redis"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for the per-IP request limiter.
type RateLimitConfig struct {
	RequestLimit   int
	WindowDuration time.Duration
	// RedisClient backs the counter across replicas; nil keeps the
	// counter in memory.
	RedisClient *redis.Client
}

// DefaultRateLimitConfig returns the default per-IP rate limit.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestLimit:   100,
		WindowDuration: time.Minute,
	}
}

// RateLimit returns middleware that rate limits requests per client IP.
func RateLimit(config RateLimitConfig) func(next http.Handler) http.Handler {
	if config.RequestLimit == 0 {
		config = DefaultRateLimitConfig()
	}

	opts := []httprate.Option{
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded","status_code":429}`))
		}),
		httprate.WithKeyByRealIP(),
	}

	if config.RedisClient != nil {
		opts = append(opts, httprateredis.WithRedisLimitCounter(&httprateredis.Config{
			Client:    config.RedisClient,
			PrefixKey: "iris:ratelimit",
		}))
	}

	limiter := httprate.NewRateLimiter(config.RequestLimit, config.WindowDuration, opts...)
	return limiter.Handler
}
