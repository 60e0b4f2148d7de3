// Command server runs the Iris web fetching service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/r3co87/iris/browser"
	"github.com/r3co87/iris/cache"
	"github.com/r3co87/iris/config"
	"github.com/r3co87/iris/fetch"
	"github.com/r3co87/iris/logger"
	"github.com/r3co87/iris/ratelimit"
	"github.com/r3co87/iris/robots"
	"github.com/r3co87/iris/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("error").Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting iris", "addr", cfg.Addr(), "browser_type", cfg.BrowserType, "headless", cfg.Headless)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The store is optional: an unreachable redis degrades to local
	// rate-limit buckets and a disabled cache.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Error("failed to parse redis URL", "error", parseErr)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
			log.Warn("redis unreachable, running with local fallbacks", "error", pingErr)
		} else {
			log.Info("redis connection established")
		}
	}

	b := browser.New(
		browser.WithHeadless(cfg.Headless),
		browser.WithBrowserType(cfg.BrowserType),
		browser.WithUserAgent(cfg.UserAgent),
		browser.WithCDPURL(cfg.CDPURL),
		browser.WithLogger(log),
	)
	if err := b.Start(ctx); err != nil {
		if !cfg.TestingMode {
			log.Error("failed to start browser", "error", err)
			os.Exit(1)
		}
		log.Warn("browser unavailable, continuing in testing mode", "error", err)
	}
	defer b.Close()

	responseCache := cache.New(redisClient, cache.Config{
		TTL:     cfg.CacheTTL(),
		Enabled: cfg.CacheEnabled,
	}, log)

	limiter := ratelimit.New(redisClient, ratelimit.Config{
		MinDelay: cfg.MinDelayBetweenRequests(),
		Burst:    cfg.RateLimitBurst,
	}, log)

	var checker *robots.Checker
	if cfg.RespectRobotsTxt {
		checker = robots.New(redisClient, robots.Config{
			UserAgent: cfg.UserAgent,
			TTL:       cfg.RobotsTxtCacheTTL(),
		}, log)
	}

	fetcher := fetch.New(b, responseCache, limiter, checker, cfg, log)

	srv := server.NewServer(fetcher, b, responseCache, log, &server.Config{
		RedisClient: redisClient,
	})

	if err := srv.StartWithShutdown(ctx, cfg.Addr()); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}

	log.Info("shutdown complete")
}
