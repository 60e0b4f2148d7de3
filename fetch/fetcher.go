// Package fetch orchestrates the pipeline for a single page fetch:
// pre-flight checks, cache lookup, rate limiting, browser navigation
// with retry, content-type dispatch, and extraction.
package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/r3co87/iris/browser"
	"github.com/r3co87/iris/cache"
	"github.com/r3co87/iris/config"
	"github.com/r3co87/iris/extract"
	"github.com/r3co87/iris/logger"
	"github.com/r3co87/iris/ratelimit"
	"github.com/r3co87/iris/robots"
	urlutil "github.com/r3co87/iris/url"
)

const (
	// retryBaseDelay seeds the exponential backoff between attempts.
	retryBaseDelay = 500 * time.Millisecond
	// retryMaxDelay caps a single backoff sleep.
	retryMaxDelay = 10 * time.Second
	// jitterFraction spreads backoff sleeps by +/- 25%.
	jitterFraction = 0.25

	// rawBodyMultiplier bounds raw document size relative to the
	// content cap. Bodies past this are rejected before extraction.
	rawBodyMultiplier = 10
)

// Driver is what the pipeline demands of a browser automation backend.
type Driver interface {
	Fetch(ctx context.Context, req *browser.Request) (*browser.Response, error)
	Healthy() bool
	Type() string
}

// Fetcher coordinates fetches across the cache, robots policy, rate
// limiter, and browser driver.
type Fetcher struct {
	driver  Driver
	cache   *cache.Cache
	limiter *ratelimit.Limiter
	robots  *robots.Checker
	html    *extract.HTMLExtractor
	pdf     *extract.PDFExtractor
	cfg     *config.Config
	logger  logger.Logger

	pages  *semaphore.Weighted
	active atomic.Int64
}

// New creates a Fetcher. A nil robots checker disables robots.txt
// enforcement.
func New(driver Driver, c *cache.Cache, limiter *ratelimit.Limiter, checker *robots.Checker, cfg *config.Config, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.Noop()
	}

	return &Fetcher{
		driver:  driver,
		cache:   c,
		limiter: limiter,
		robots:  checker,
		html:    extract.NewHTML(),
		pdf:     extract.NewPDF(),
		cfg:     cfg,
		logger:  log,
		pages:   semaphore.NewWeighted(int64(cfg.MaxConcurrentPages)),
	}
}

// ActivePages reports how many browser pages are currently in flight.
func (f *Fetcher) ActivePages() int64 {
	return f.active.Load()
}

// Fetch runs the full pipeline for one request. Errors are carried in
// the result, never returned: callers always get a well-formed Result.
func (f *Fetcher) Fetch(ctx context.Context, req *Request) *Result {
	start := time.Now()

	if _, err := urlutil.ParseAndValidate(req.URL); err != nil {
		return errorResult(req.URL, start, newError(ErrInvalidURL, err.Error()))
	}

	fingerprint, err := Fingerprint(req)
	if err != nil {
		return errorResult(req.URL, start, newError(ErrInvalidURL, err.Error()))
	}

	if req.Cache && f.cache.Enabled() {
		if result := f.cachedResult(ctx, fingerprint, start); result != nil {
			return result
		}
	}

	var crawlDelay time.Duration
	if f.robots != nil {
		allowed, robotsErr := f.robots.IsAllowed(ctx, req.URL)
		if robotsErr == nil && !allowed {
			return errorResult(req.URL, start, newError(ErrBlockedByRobots, "disallowed by robots.txt"))
		}
		crawlDelay = f.robots.CrawlDelay(ctx, req.URL)
	}

	domain, err := urlutil.RegistrableDomain(req.URL)
	if err != nil {
		return errorResult(req.URL, start, newError(ErrInvalidURL, err.Error()))
	}
	if err := f.limiter.AcquireWithDelay(ctx, domain, crawlDelay); err != nil {
		return errorResult(req.URL, start, classifyDriverError(err))
	}

	if err := f.pages.Acquire(ctx, 1); err != nil {
		return errorResult(req.URL, start, classifyDriverError(err))
	}
	f.active.Add(1)
	defer func() {
		f.active.Add(-1)
		f.pages.Release(1)
	}()

	result := f.fetchWithRetry(ctx, req, start)

	if result.Error == nil && req.Cache && f.cache.Enabled() {
		f.storeResult(ctx, fingerprint, result)
	}

	return result
}

// FetchBatch runs up to MaxBatchSize requests concurrently, each
// independently rate limited and gated by the page semaphore. Results
// come back in request order; per-item failures never fail the batch.
func (f *Fetcher) FetchBatch(ctx context.Context, reqs []*Request) (*BatchResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("batch requires at least one request")
	}
	if len(reqs) > MaxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds maximum of %d", len(reqs), MaxBatchSize)
	}

	start := time.Now()
	results := make([]*Result, len(reqs))

	var g errgroup.Group
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = f.Fetch(ctx, req)
			return nil
		})
	}
	g.Wait()

	return &BatchResult{
		Results:     results,
		TotalTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

// fetchWithRetry drives the attempt loop: navigate, classify failures,
// and back off exponentially between retryable attempts.
func (f *Fetcher) fetchWithRetry(ctx context.Context, req *Request, start time.Time) *Result {
	browserReq := &browser.Request{
		URL:        req.URL,
		Headers:    req.Headers,
		Timeout:    f.cfg.ClampTimeout(req.TimeoutMS),
		Wait:       req.effectiveWait(f.cfg.WaitAfterLoad()),
		Screenshot: req.Screenshot,
	}

	var lastErr *Error
	lastStatus := 0

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		lastStatus = 0
		resp, err := f.driver.Fetch(ctx, browserReq)
		if err != nil {
			lastErr = classifyDriverError(err)
		} else if statusErr := classifyStatus(resp.StatusCode); statusErr != nil {
			lastErr = statusErr
			lastStatus = resp.StatusCode
		} else {
			return f.buildResult(req, resp, start)
		}

		if !lastErr.Retryable || attempt == f.cfg.MaxRetries {
			break
		}

		delay := backoff(attempt)
		f.logger.Debug("retrying fetch", "url", req.URL, "attempt", attempt+1, "delay_ms", delay.Milliseconds(), "error", lastErr.Message)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result := errorResult(req.URL, start, classifyDriverError(ctx.Err()))
			result.StatusCode = lastStatus
			return result
		}
	}

	result := errorResult(req.URL, start, lastErr)
	result.StatusCode = lastStatus
	return result
}

// buildResult dispatches on the document content type and assembles
// the final result with the requested artifacts.
func (f *Fetcher) buildResult(req *Request, resp *browser.Response, start time.Time) *Result {
	result := &Result{
		URL:         resp.URL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType(),
	}

	if limit := f.cfg.MaxContentLength * rawBodyMultiplier; len(resp.Body) > limit {
		result.Error = newError(ErrContentTooLarge, fmt.Sprintf("document body is %d bytes, cap is %d", len(resp.Body), limit))
		result.ElapsedMS = time.Since(start).Milliseconds()
		return result
	}

	contentType := resp.ContentType()
	switch {
	case contentType == "" || strings.HasPrefix(contentType, "text/html") || strings.HasPrefix(contentType, "application/xhtml"):
		f.buildHTMLResult(req, resp, result)
	case contentType == "application/pdf":
		f.buildPDFResult(req, resp, result)
	case contentType == "application/json":
		if req.ExtractText {
			result.ContentText = prettyJSON(resp.Body)
		}
	case strings.HasPrefix(contentType, "text/"):
		if req.ExtractText {
			result.ContentText = string(resp.Body)
		}
	case strings.HasPrefix(contentType, "image/"):
		if req.ExtractMetadata {
			result.Metadata = &extract.Metadata{}
		}
	default:
		result.Error = newError(ErrUnsupportedContentType, fmt.Sprintf("no handler for content type %q", contentType))
		result.ElapsedMS = time.Since(start).Milliseconds()
		return result
	}

	if result.Error == nil {
		result.ContentText = truncate(result.ContentText, f.cfg.MaxContentLength)
		result.ContentLength = len(result.ContentText)

		if req.Screenshot && len(resp.Screenshot) > 0 {
			result.ScreenshotBase64 = base64.StdEncoding.EncodeToString(resp.Screenshot)
		}
	}

	result.ElapsedMS = time.Since(start).Milliseconds()
	return result
}

// buildHTMLResult extracts the requested artifacts from rendered HTML.
func (f *Fetcher) buildHTMLResult(req *Request, resp *browser.Response, result *Result) {
	content, err := f.html.Extract(resp.Body, resp.URL)
	if err != nil {
		result.Error = newError(ErrBrowser, fmt.Sprintf("extraction failed: %v", err))
		return
	}

	if req.ExtractText {
		result.ContentText = content.Text
	}
	if req.ExtractMetadata && !content.Metadata.IsZero() {
		meta := content.Metadata
		result.Metadata = &meta
	}
	if req.ExtractLinks {
		result.Links = content.Links
	}
	if !content.StructuredData.IsZero() {
		sd := content.StructuredData
		result.StructuredData = &sd
	}
}

// buildPDFResult extracts text and document metadata from PDF bytes.
// Parse failures surface as browser_error, non-retryable.
func (f *Fetcher) buildPDFResult(req *Request, resp *browser.Response, result *Result) {
	pdfResult, err := f.pdf.Extract(resp.Body)
	if err != nil {
		result.Error = newError(ErrBrowser, err.Error())
		return
	}

	if req.ExtractText {
		result.ContentText = pdfResult.Text
	}
	if req.ExtractMetadata {
		result.Metadata = &extract.Metadata{
			Title:     pdfResult.Title,
			Author:    pdfResult.Author,
			PDFPages:  pdfResult.Pages,
			PDFAuthor: pdfResult.Author,
		}
	}
}

// cachedResult returns the deserialized cache hit for a fingerprint,
// or nil on miss or decode failure.
func (f *Fetcher) cachedResult(ctx context.Context, fingerprint string, start time.Time) *Result {
	data := f.cache.Get(ctx, fingerprint)
	if data == nil {
		return nil
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		f.logger.Warn("dropping undecodable cache entry", "fingerprint", fingerprint, "error", err)
		f.cache.Invalidate(ctx, fingerprint)
		return nil
	}

	result.Cached = true
	result.ElapsedMS = time.Since(start).Milliseconds()
	return &result
}

// storeResult serializes and caches a successful result.
func (f *Fetcher) storeResult(ctx context.Context, fingerprint string, result *Result) {
	entry := *result
	entry.Cached = false

	data, err := json.Marshal(&entry)
	if err != nil {
		f.logger.Warn("failed to serialize result for cache", "fingerprint", fingerprint, "error", err)
		return
	}
	f.cache.Set(ctx, fingerprint, data, 0)
}

// errorResult builds a result that carries only the error, the URL, and
// the elapsed time.
func errorResult(url string, start time.Time, fetchErr *Error) *Result {
	return &Result{
		URL:       url,
		ElapsedMS: time.Since(start).Milliseconds(),
		Error:     fetchErr,
	}
}

// backoff computes the sleep before retry n: base * 2^n with +/- 25%
// jitter, capped.
func backoff(attempt int) time.Duration {
	delay := float64(retryBaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(retryMaxDelay) {
		delay = float64(retryMaxDelay)
	}

	jitter := (rand.Float64()*2 - 1) * jitterFraction * delay
	delay += jitter
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// prettyJSON re-indents a JSON document; invalid documents pass through
// unchanged.
func prettyJSON(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

// truncate cuts s to at most max bytes, trimming only the partial rune
// the cut may leave at the end. Invalid bytes elsewhere in the body
// pass through untouched.
func truncate(s string, max int) string {
	if len(s) <= max || max < 0 {
		return s
	}

	cut := s[:max]
	for i := 0; i < utf8.UTFMax && len(cut) > 0; i++ {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r != utf8.RuneError || size > 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut
}
