// Package browser drives a long-lived headless browser over the Chrome
// DevTools Protocol. Pages are per-fetch scoped acquisitions: every tab
// context is cancelled on all exit paths.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/r3co87/iris/logger"
)

// Request describes a single page fetch attempt.
type Request struct {
	URL        string
	Headers    map[string]string
	Timeout    time.Duration
	Wait       WaitConfig
	Screenshot bool
}

// Response is the raw outcome of a navigation: final URL after
// redirects, document status and headers, the rendered DOM (or raw
// document bytes for non-HTML content), and an optional screenshot.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Screenshot []byte
}

// ContentType returns the canonical lowercased MIME type of the
// document, without parameters.
func (r *Response) ContentType() string {
	ct := r.Headers.Get("Content-Type")
	if ct == "" {
		return ""
	}
	if base, _, ok := strings.Cut(ct, ";"); ok {
		ct = base
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Browser owns the headless browser process. One instance lives for the
// whole process; tabs are created per fetch.
type Browser struct {
	headless    bool
	browserType string
	userAgent   string
	cdpURL      string
	logger      logger.Logger

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
	started     bool
}

// Option configures the Browser.
type Option func(*Browser)

// WithHeadless toggles headless mode.
func WithHeadless(headless bool) Option {
	return func(b *Browser) { b.headless = headless }
}

// WithBrowserType records the engine name reported by /health. Only
// chromium is driven locally; firefox and webkit require a remote CDP
// endpoint.
func WithBrowserType(t string) Option {
	return func(b *Browser) { b.browserType = t }
}

// WithUserAgent sets the user agent for all navigations.
func WithUserAgent(ua string) Option {
	return func(b *Browser) { b.userAgent = ua }
}

// WithCDPURL sets a remote Chrome DevTools Protocol endpoint instead of
// launching a local browser.
func WithCDPURL(url string) Option {
	return func(b *Browser) { b.cdpURL = url }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Browser) { b.logger = l }
}

// New creates a Browser. Call Start before fetching.
func New(opts ...Option) *Browser {
	b := &Browser{
		headless:    true,
		browserType: "chromium",
		logger:      logger.Noop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the browser process (or connects to a remote CDP
// endpoint) and keeps it alive until Close.
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	if b.cdpURL != "" {
		b.allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(ctx, b.cdpURL, chromedp.NoModifyURL)
	} else {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		opts = append(opts,
			chromedp.Flag("headless", b.headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("disable-background-networking", true),
			chromedp.Flag("mute-audio", true),
			chromedp.Flag("hide-scrollbars", true),
		)
		if b.userAgent != "" {
			opts = append(opts, chromedp.UserAgent(b.userAgent))
		}
		b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	b.browserCtx, b.browserStop = chromedp.NewContext(b.allocCtx)

	// Launch eagerly so startup failures surface here, not on the
	// first fetch.
	if err := chromedp.Run(b.browserCtx); err != nil {
		b.browserStop()
		b.allocCancel()
		b.started = false
		return fmt.Errorf("failed to start browser: %w", err)
	}

	b.started = true
	b.logger.Info("browser started", "type", b.browserType, "headless", b.headless)
	return nil
}

// Close shuts down the browser process.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return
	}
	b.browserStop()
	b.allocCancel()
	b.started = false
	b.logger.Info("browser closed")
}

// Healthy reports whether the browser is up.
func (b *Browser) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// Type returns the engine name.
func (b *Browser) Type() string {
	return b.browserType
}

// Fetch opens a tab, navigates, applies the wait strategy, and captures
// the document. The tab is closed on every exit path.
func (b *Browser) Fetch(ctx context.Context, req *Request) (*Response, error) {
	b.mu.Lock()
	started := b.started
	browserCtx := b.browserCtx
	b.mu.Unlock()

	if !started {
		return nil, fmt.Errorf("browser not started")
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithTimeout(tabCtx, req.Timeout)
		defer cancel()
	}

	// Abandon the tab if the caller goes away.
	go func() {
		select {
		case <-ctx.Done():
			closeTab()
		case <-tabCtx.Done():
		}
	}()

	state := newPageState()

	var (
		statusCode   int
		headers      http.Header
		docRequestID network.RequestID
	)

	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			state.addRequest()
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			state.removeRequest()
		case *network.EventResponseReceived:
			if e.Type == network.ResourceTypeDocument && statusCode == 0 {
				statusCode = int(e.Response.Status)
				headers = headersFromNetwork(e.Response.Headers)
				docRequestID = e.RequestID
			}
		case *page.EventLifecycleEvent:
			state.setLifecycle(e.Name)
		}
	})

	actions := []chromedp.Action{
		network.Enable(),
		page.Enable(),
		page.SetLifecycleEventsEnabled(true),
	}

	if len(req.Headers) > 0 {
		extra := make(network.Headers, len(req.Headers))
		for key, value := range req.Headers {
			extra[key] = value
		}
		actions = append(actions, network.SetExtraHTTPHeaders(extra))
	}

	actions = append(actions,
		chromedp.Navigate(req.URL),
		waitAction(state, req.Wait, b.logger),
	)

	var finalURL, html string
	actions = append(actions, chromedp.Location(&finalURL))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return nil, err
	}

	if headers == nil {
		headers = http.Header{"Content-Type": []string{"text/html; charset=utf-8"}}
	}

	resp := &Response{
		URL:        finalURL,
		StatusCode: statusCode,
		Headers:    headers,
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}

	if isHTMLContentType(resp.ContentType()) {
		if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html)); err != nil {
			return nil, err
		}
		resp.Body = []byte(html)
	} else {
		// Non-HTML documents (PDF, JSON, plain text, images) are not
		// rendered; pull the raw document bytes off the wire.
		err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			body, getErr := network.GetResponseBody(docRequestID).Do(ctx)
			if getErr != nil {
				return getErr
			}
			resp.Body = body
			return nil
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to read document body: %w", err)
		}
	}

	if req.Screenshot {
		var shot []byte
		if err := chromedp.Run(tabCtx, chromedp.FullScreenshot(&shot, 90)); err != nil {
			return nil, fmt.Errorf("screenshot failed: %w", err)
		}
		resp.Screenshot = shot
	}

	b.logger.Debug("page fetched",
		"url", req.URL,
		"final_url", resp.URL,
		"status", resp.StatusCode,
		"content_type", resp.ContentType(),
		"body_size", len(resp.Body),
	)

	return resp, nil
}

func isHTMLContentType(ct string) bool {
	return ct == "" || strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml")
}

// headersFromNetwork converts CDP headers to http.Header.
func headersFromNetwork(h network.Headers) http.Header {
	headers := make(http.Header, len(h))
	for key, value := range h {
		headers.Set(key, fmt.Sprint(value))
	}
	return headers
}
