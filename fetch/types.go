package fetch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/r3co87/iris/browser"
	"github.com/r3co87/iris/extract"
)

// Request describes a single fetch: the URL, which artifacts to
// extract, and how long to wait for dynamic content.
type Request struct {
	URL             string            `json:"url"`
	ExtractText     bool              `json:"extract_text"`
	ExtractMetadata bool              `json:"extract_metadata"`
	ExtractLinks    bool              `json:"extract_links"`
	Screenshot      bool              `json:"screenshot"`
	Cache           bool              `json:"cache"`
	WaitStrategy    string            `json:"wait_strategy,omitempty"`
	WaitForSelector string            `json:"wait_for_selector,omitempty"`
	WaitAfterLoadMS *int              `json:"wait_after_load_ms,omitempty"`
	TimeoutMS       int               `json:"timeout_ms,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
}

// UnmarshalJSON applies request defaults: text and metadata extraction
// on, caching on, everything else off.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	req := plain{
		ExtractText:     true,
		ExtractMetadata: true,
		Cache:           true,
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	*r = Request(req)
	return nil
}

// Validate checks the request for errors that make it unprocessable.
func (r *Request) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("url is required")
	}
	if r.WaitStrategy != "" && !browser.Strategy(r.WaitStrategy).Valid() {
		return fmt.Errorf("unknown wait_strategy %q", r.WaitStrategy)
	}
	if r.WaitAfterLoadMS != nil && *r.WaitAfterLoadMS < 0 {
		return fmt.Errorf("wait_after_load_ms must be >= 0")
	}
	if r.TimeoutMS < 0 {
		return fmt.Errorf("timeout_ms must be >= 0")
	}
	return nil
}

// effectiveWait resolves the wait configuration for this request.
// Setting wait_for_selector coerces the strategy to selector regardless
// of the supplied wait_strategy.
func (r *Request) effectiveWait(defaultAfterLoad time.Duration) browser.WaitConfig {
	strategy := browser.Strategy(r.WaitStrategy)
	if strategy == "" {
		strategy = browser.WaitLoad
	}
	if r.WaitForSelector != "" {
		strategy = browser.WaitSelector
	}

	afterLoad := defaultAfterLoad
	if r.WaitAfterLoadMS != nil {
		afterLoad = time.Duration(*r.WaitAfterLoadMS) * time.Millisecond
	}

	return browser.WaitConfig{
		Strategy:  strategy,
		Selector:  r.WaitForSelector,
		AfterLoad: afterLoad,
	}
}

// Result is the outcome of one fetch. Error is mutually exclusive with
// populated content; it may coexist with URL and StatusCode.
type Result struct {
	URL              string                  `json:"url"`
	StatusCode       int                     `json:"status_code,omitempty"`
	ContentText      string                  `json:"content_text,omitempty"`
	ContentType      string                  `json:"content_type,omitempty"`
	Metadata         *extract.Metadata       `json:"metadata,omitempty"`
	Links            []extract.Link          `json:"links,omitempty"`
	StructuredData   *extract.StructuredData `json:"structured_data,omitempty"`
	ScreenshotBase64 string                  `json:"screenshot_base64,omitempty"`
	ContentLength    int                     `json:"content_length"`
	ElapsedMS        int64                   `json:"elapsed_ms"`
	Cached           bool                    `json:"cached"`
	Error            *Error                  `json:"error,omitempty"`
}

// BatchRequest wraps up to MaxBatchSize fetch requests.
type BatchRequest struct {
	Requests []*Request `json:"requests"`
}

// BatchResult carries per-item results in request order.
type BatchResult struct {
	Results     []*Result `json:"results"`
	TotalTimeMS int64     `json:"total_time_ms"`
}

// MaxBatchSize is the most requests a single batch call accepts.
const MaxBatchSize = 10
