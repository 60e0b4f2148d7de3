// Package server exposes the fetch pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
	"github.com/redis/go-redis/v9"

	"github.com/r3co87/iris/cache"
	"github.com/r3co87/iris/fetch"
	"github.com/r3co87/iris/logger"
	"github.com/r3co87/iris/server/middleware"
)

// Version is reported by /health.
const Version = "1.0.0"

// Config holds API server configuration.
type Config struct {
	// RedisClient backs the per-IP request limiter across replicas;
	// nil keeps the counter in memory.
	RedisClient *redis.Client
	// RateLimitRequests per window per client IP (default 100).
	RateLimitRequests int
	// RateLimitWindow for the per-IP limiter (default 1 minute).
	RateLimitWindow time.Duration
}

// Server is the HTTP server for the fetch API.
type Server struct {
	fetcher *fetch.Fetcher
	driver  fetch.Driver
	cache   *cache.Cache
	logger  logger.Logger
	router  *chi.Mux
	started time.Time
}

// NewServer creates the API server with its router and middleware
// stack.
func NewServer(f *fetch.Fetcher, driver fetch.Driver, c *cache.Cache, log logger.Logger, cfg *Config) *Server {
	if log == nil {
		log = logger.Noop()
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.RateLimitRequests == 0 {
		cfg.RateLimitRequests = 100
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = time.Minute
	}

	s := &Server{
		fetcher: f,
		driver:  driver,
		cache:   c,
		logger:  log,
		started: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httplog.RequestLogger(logger.Slog(log), &httplog.Options{
		Level:         slog.LevelInfo,
		RecoverPanics: true,
	}))
	r.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestLimit:   cfg.RateLimitRequests,
		WindowDuration: cfg.RateLimitWindow,
		RedisClient:    cfg.RedisClient,
	}))

	r.Post("/fetch", s.handleFetch)
	r.Post("/batch", s.handleBatch)
	r.Get("/health", s.handleHealth)
	r.Delete("/cache/{hash}", s.handleInvalidateCache)

	s.router = r
	return s
}

// StartWithShutdown runs the server until the context is canceled, then
// shuts down gracefully.
func (s *Server) StartWithShutdown(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
