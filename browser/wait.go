package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/r3co87/iris/logger"
)

// Strategy selects how long to wait after navigation before the page is
// considered ready for extraction.
type Strategy string

const (
	// WaitLoad resolves at the window load event.
	WaitLoad Strategy = "load"
	// WaitDOMContentLoaded resolves once the DOM is parsed.
	WaitDOMContentLoaded Strategy = "domcontentloaded"
	// WaitNetworkIdle resolves after a quiescence window with no
	// in-flight network requests.
	WaitNetworkIdle Strategy = "networkidle"
	// WaitSelector resolves when a CSS selector matches.
	WaitSelector Strategy = "selector"
	// WaitTimeout sleeps unconditionally for the configured duration.
	WaitTimeout Strategy = "timeout"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle, WaitSelector, WaitTimeout:
		return true
	}
	return false
}

// WaitConfig describes the post-navigation wait for one fetch.
type WaitConfig struct {
	Strategy Strategy
	// Selector is required when Strategy is WaitSelector.
	Selector string
	// AfterLoad is slept once the strategy completes. For WaitTimeout
	// it is the whole wait.
	AfterLoad time.Duration
}

const (
	networkIdleQuiescence = 500 * time.Millisecond
	networkIdlePoll       = 50 * time.Millisecond
)

// waitAction dispatches the wait strategy over driver primitives. The
// navigation itself already waits for the load event, which also covers
// load and domcontentloaded.
func waitAction(state *pageState, cfg WaitConfig, log logger.Logger) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		switch cfg.Strategy {
		case WaitNetworkIdle:
			if err := waitForNetworkIdle(ctx, state); err != nil {
				return err
			}
		case WaitSelector:
			if cfg.Selector == "" {
				return fmt.Errorf("selector strategy requires a selector")
			}
			if err := chromedp.WaitReady(cfg.Selector, chromedp.ByQuery).Do(ctx); err != nil {
				return fmt.Errorf("selector %q not found: %w", cfg.Selector, err)
			}
		case WaitTimeout:
			return sleepCtx(ctx, cfg.AfterLoad)
		case WaitLoad, WaitDOMContentLoaded, "":
			// Satisfied by navigation.
		default:
			log.Warn("unknown wait strategy, treating as load", "strategy", string(cfg.Strategy))
		}

		if cfg.Strategy != WaitTimeout && cfg.AfterLoad > 0 {
			return sleepCtx(ctx, cfg.AfterLoad)
		}
		return nil
	}
}

// waitForNetworkIdle polls the page state until the browser reports the
// networkIdle lifecycle event, or no request has been in flight for the
// quiescence window.
func waitForNetworkIdle(ctx context.Context, state *pageState) error {
	ticker := time.NewTicker(networkIdlePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			inflight, lastActivity, idle := state.snapshot()
			if idle {
				return nil
			}
			if inflight == 0 && !lastActivity.IsZero() && time.Since(lastActivity) >= networkIdleQuiescence {
				return nil
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pageState tracks network activity and lifecycle events for one tab.
type pageState struct {
	mu           sync.Mutex
	inflight     int
	lastActivity time.Time
	networkIdle  bool
}

func newPageState() *pageState {
	return &pageState{lastActivity: time.Now()}
}

func (s *pageState) addRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.lastActivity = time.Now()
	s.networkIdle = false
}

func (s *pageState) removeRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight > 0 {
		s.inflight--
	}
	s.lastActivity = time.Now()
}

func (s *pageState) setLifecycle(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "networkIdle" {
		s.networkIdle = true
	}
}

func (s *pageState) snapshot() (inflight int, lastActivity time.Time, networkIdle bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight, s.lastActivity, s.networkIdle
}
