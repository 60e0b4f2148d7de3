// Package robots enforces robots.txt policies. Fetched robots.txt
// bodies are cached in redis per origin so replicas share them, with a
// parsed in-memory copy per process. Unreachable or broken robots.txt
// fails open: the origin is treated as allow-all for a short interval.
package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/temoto/robotstxt"

	"github.com/r3co87/iris/logger"
	urlutil "github.com/r3co87/iris/url"
)

const (
	keyPrefix = "robots:"

	// maxBodySize caps how much of a robots.txt body is read.
	maxBodySize = 512 * 1024

	// failOpenTTL is how long an unreachable origin stays allow-all
	// before we try its robots.txt again.
	failOpenTTL = 5 * time.Minute

	// maxRedirects bounds how many same-scheme redirects a robots.txt
	// fetch follows before failing open.
	maxRedirects = 2
)

// allowAllSentinel marks an origin whose robots.txt could not be
// fetched. Stored in redis in place of a body.
const allowAllSentinel = "\x00allow-all"

// Checker verifies whether URLs may be fetched under robots.txt rules.
type Checker struct {
	userAgent string
	client    *redis.Client
	http      *http.Client
	ttl       time.Duration
	logger    logger.Logger

	mu     sync.Mutex
	parsed map[string]*cachedPolicy
}

// cachedPolicy holds a parsed robots.txt group with expiration. A nil
// group means allow-all.
type cachedPolicy struct {
	group     *robotstxt.Group
	expiresAt time.Time
}

// Config holds robots checker configuration.
type Config struct {
	// UserAgent is matched against robots.txt group names.
	UserAgent string
	// TTL is how long fetched robots.txt bodies stay cached.
	TTL time.Duration
}

// New creates a Checker. A nil redis client skips the shared body cache
// and relies on the in-memory parsed cache alone.
func New(client *redis.Client, cfg Config, log logger.Logger) *Checker {
	if log == nil {
		log = logger.Noop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}

	httpClient := &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("robots: stopped after %d redirects", maxRedirects)
			}
			if req.URL.Scheme != via[0].URL.Scheme {
				return errors.New("robots: cross-scheme redirect")
			}
			return nil
		},
	}

	return &Checker{
		userAgent: cfg.UserAgent,
		client:    client,
		http:      httpClient,
		ttl:       cfg.TTL,
		logger:    log,
		parsed:    make(map[string]*cachedPolicy),
	}
}

// IsAllowed reports whether the URL may be fetched under the origin's
// robots.txt rules for the configured user agent.
func (c *Checker) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := urlutil.ParseAndValidate(rawURL)
	if err != nil {
		return false, err
	}

	origin, err := urlutil.Origin(rawURL)
	if err != nil {
		return false, err
	}

	group := c.policy(ctx, origin)
	if group == nil {
		return true, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path = path + "?" + parsed.RawQuery
	}

	return group.Test(path), nil
}

// CrawlDelay returns the crawl delay the origin's robots.txt declares
// for the configured user agent, or 0 when none is set.
func (c *Checker) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	origin, err := urlutil.Origin(rawURL)
	if err != nil {
		return 0
	}

	group := c.policy(ctx, origin)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

// policy returns the parsed rule group for an origin, fetching and
// caching robots.txt as needed. A nil group means allow-all.
func (c *Checker) policy(ctx context.Context, origin string) *robotstxt.Group {
	c.mu.Lock()
	cached, ok := c.parsed[origin]
	if ok && time.Now().Before(cached.expiresAt) {
		group := cached.group
		c.mu.Unlock()
		return group
	}
	delete(c.parsed, origin)
	c.mu.Unlock()

	body, ttl := c.loadBody(ctx, origin)

	var group *robotstxt.Group
	if body != allowAllSentinel {
		data, err := robotstxt.FromString(body)
		if err != nil {
			c.logger.Warn("robots.txt parse failed, allowing all", "origin", origin, "error", err)
		} else {
			group = data.FindGroup(c.userAgent)
		}
	}

	c.mu.Lock()
	c.parsed[origin] = &cachedPolicy{group: group, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()

	return group
}

// loadBody returns the robots.txt body for an origin and how long it
// may be cached, consulting the shared store before fetching.
func (c *Checker) loadBody(ctx context.Context, origin string) (string, time.Duration) {
	key := keyPrefix + origin

	if c.client != nil {
		body, err := c.client.Get(ctx, key).Result()
		if err == nil {
			return body, c.ttl
		}
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("robots cache get failed", "origin", origin, "error", err)
		}
	}

	body, ttl, err := c.fetch(ctx, origin)
	if err != nil {
		c.logger.Warn("robots.txt fetch failed, allowing all", "origin", origin, "error", err)
		body, ttl = allowAllSentinel, failOpenTTL
	}

	if c.client != nil {
		if err := c.client.Set(ctx, key, body, ttl).Err(); err != nil {
			c.logger.Warn("robots cache set failed", "origin", origin, "error", err)
		}
	}

	return body, ttl
}

// fetch retrieves an origin's robots.txt. Missing files (4xx) read as
// an empty allow-all body, re-checked on the short fail-open cadence;
// server errors and transport failures are returned for fail-open
// handling.
func (c *Checker) fetch(ctx context.Context, origin string) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return "", 0, err
		}
		return string(body), c.ttl, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// No robots.txt means no restrictions.
		return "", failOpenTTL, nil
	default:
		return "", 0, fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	}
}
