package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8060, cfg.Port)
	assert.Equal(t, "chromium", cfg.BrowserType)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 30000, cfg.PageTimeoutMS)
	assert.Equal(t, 3, cfg.MaxConcurrentPages)
	assert.Equal(t, 500000, cfg.MaxContentLength)
	assert.Equal(t, 1000, cfg.MinDelayBetweenRequestsMS)
	assert.Equal(t, 3, cfg.RateLimitBurst)
	assert.True(t, cfg.RespectRobotsTxt)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.False(t, cfg.TestingMode)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IRIS_PORT", "9999")
	t.Setenv("IRIS_BROWSER_TYPE", "firefox")
	t.Setenv("IRIS_HEADLESS", "false")
	t.Setenv("IRIS_MAX_RETRIES", "5")
	t.Setenv("IRIS_USER_AGENT", "test-agent/2.0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "firefox", cfg.BrowserType)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "test-agent/2.0", cfg.UserAgent)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("IRIS_PORT", "not-a-number")
	t.Setenv("IRIS_HEADLESS", "not-a-bool")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8060, cfg.Port)
	assert.True(t, cfg.Headless)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad browser type", func(c *Config) { c.BrowserType = "opera" }, "browser_type"},
		{"zero port", func(c *Config) { c.Port = 0 }, "port"},
		{"zero page timeout", func(c *Config) { c.PageTimeoutMS = 0 }, "page_timeout_ms"},
		{"zero concurrency", func(c *Config) { c.MaxConcurrentPages = 0 }, "max_concurrent_pages"},
		{"zero burst", func(c *Config) { c.RateLimitBurst = 0 }, "rate_limit_burst"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "max_retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClampTimeout(t *testing.T) {
	cfg := &Config{PageTimeoutMS: 30000}

	assert.Equal(t, 10*time.Second, cfg.ClampTimeout(10000))
	assert.Equal(t, 30*time.Second, cfg.ClampTimeout(60000), "override above max is clamped")
	assert.Equal(t, 30*time.Second, cfg.ClampTimeout(0), "zero selects default")
	assert.Equal(t, 30*time.Second, cfg.ClampTimeout(-5), "negative selects default")
}
