// Package config loads service configuration from IRIS_-prefixed
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// DefaultUserAgent identifies the service to remote origins and
	// robots.txt rule tables.
	DefaultUserAgent = "Iris/1.0 (Research Bot)"

	envPrefix = "IRIS_"
)

// Config holds all service settings.
type Config struct {
	// Service
	Host     string
	Port     int
	LogLevel string

	// Browser. CDPURL points at a remote DevTools endpoint; empty
	// launches a local browser.
	BrowserType        string
	CDPURL             string
	Headless           bool
	PageTimeoutMS      int
	WaitAfterLoadMS    int
	MaxConcurrentPages int
	UserAgent          string

	// Content extraction
	MaxContentLength int

	// Cache
	RedisURL        string
	CacheTTLSeconds int
	CacheEnabled    bool

	// Politeness
	MinDelayBetweenRequestsMS int
	RateLimitBurst            int
	RespectRobotsTxt          bool
	RobotsTxtCacheTTLSeconds  int

	// Retry
	MaxRetries int

	// TestingMode allows startup without a reachable browser.
	TestingMode bool
}

// Load reads configuration from the environment, applying defaults for
// unset variables.
func Load() (*Config, error) {
	cfg := &Config{
		Host:     getEnv("HOST", "0.0.0.0"),
		Port:     getEnvInt("PORT", 8060),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BrowserType:        getEnv("BROWSER_TYPE", "chromium"),
		CDPURL:             getEnv("CDP_URL", ""),
		Headless:           getEnvBool("HEADLESS", true),
		PageTimeoutMS:      getEnvInt("PAGE_TIMEOUT_MS", 30000),
		WaitAfterLoadMS:    getEnvInt("WAIT_AFTER_LOAD_MS", 2000),
		MaxConcurrentPages: getEnvInt("MAX_CONCURRENT_PAGES", 3),
		UserAgent:          getEnv("USER_AGENT", DefaultUserAgent),

		MaxContentLength: getEnvInt("MAX_CONTENT_LENGTH", 500000),

		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/4"),
		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 3600),
		CacheEnabled:    getEnvBool("CACHE_ENABLED", true),

		MinDelayBetweenRequestsMS: getEnvInt("MIN_DELAY_BETWEEN_REQUESTS_MS", 1000),
		RateLimitBurst:            getEnvInt("RATE_LIMIT_BURST", 3),
		RespectRobotsTxt:          getEnvBool("RESPECT_ROBOTS_TXT", true),
		RobotsTxtCacheTTLSeconds:  getEnvInt("ROBOTS_TXT_CACHE_TTL", 86400),

		MaxRetries: getEnvInt("MAX_RETRIES", 2),

		TestingMode: getEnvBool("TESTING_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1-65535, got %d", c.Port)
	}

	switch c.BrowserType {
	case "chromium", "firefox", "webkit":
	default:
		return fmt.Errorf("browser_type must be chromium, firefox, or webkit, got %q", c.BrowserType)
	}

	if c.PageTimeoutMS <= 0 {
		return fmt.Errorf("page_timeout_ms must be > 0, got %d", c.PageTimeoutMS)
	}
	if c.WaitAfterLoadMS < 0 {
		return fmt.Errorf("wait_after_load_ms must be >= 0, got %d", c.WaitAfterLoadMS)
	}
	if c.MaxConcurrentPages <= 0 {
		return fmt.Errorf("max_concurrent_pages must be > 0, got %d", c.MaxConcurrentPages)
	}
	if c.MaxContentLength <= 0 {
		return fmt.Errorf("max_content_length must be > 0, got %d", c.MaxContentLength)
	}
	if c.MinDelayBetweenRequestsMS <= 0 {
		return fmt.Errorf("min_delay_between_requests_ms must be > 0, got %d", c.MinDelayBetweenRequestsMS)
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate_limit_burst must be > 0, got %d", c.RateLimitBurst)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}

	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PageTimeout returns the maximum navigation timeout as a duration.
func (c *Config) PageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutMS) * time.Millisecond
}

// WaitAfterLoad returns the default post-load wait as a duration.
func (c *Config) WaitAfterLoad() time.Duration {
	return time.Duration(c.WaitAfterLoadMS) * time.Millisecond
}

// MinDelayBetweenRequests returns the per-domain minimum delay as a duration.
func (c *Config) MinDelayBetweenRequests() time.Duration {
	return time.Duration(c.MinDelayBetweenRequestsMS) * time.Millisecond
}

// CacheTTL returns the response cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RobotsTxtCacheTTL returns the robots.txt cache TTL as a duration.
func (c *Config) RobotsTxtCacheTTL() time.Duration {
	return time.Duration(c.RobotsTxtCacheTTLSeconds) * time.Second
}

// ClampTimeout clamps a per-request timeout override to the configured
// page timeout. Zero or negative overrides select the default.
func (c *Config) ClampTimeout(timeoutMS int) time.Duration {
	if timeoutMS <= 0 || timeoutMS > c.PageTimeoutMS {
		return c.PageTimeout()
	}
	return time.Duration(timeoutMS) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
