// Package browserpool manages a process-wide pool of headless Chrome
// instances shared across concurrent scan batches, adapted from the
// crawler package's single-purpose chromedp pool but generalized with a
// per-context anti-detection shim since validation targets are scanned
// repeatedly and are more likely to run anti-bot checks than a one-shot
// crawl.
package browserpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// antiDetectionScript redefines navigator.webdriver so pages can't trivially
// detect automation. Re-applied to every new context, never just once per
// browser.
const antiDetectionScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Config controls how a Pool provisions its browsers.
type Config struct {
	MaxInstances       int
	UserAgent          string
	Headless           bool
	DisableGPU         bool
	NoSandbox          bool
	NavigationTimeout  time.Duration
}

// ContextOptions controls how CreateContext builds a new browser context.
type ContextOptions struct {
	// Reserved for future per-context overrides (viewport, extra headers).
	// Intentionally empty today; kept as a named type so CreateContext's
	// signature doesn't need to change when the first override shows up.
}

// ReleaseFunc returns a browser to the pool. It never closes the browser.
type ReleaseFunc func()

// Pool is a fixed-size, round-robin pool of long-lived headless browsers.
type Pool struct {
	mu              sync.Mutex
	browsers        []context.Context
	browserCancels  []context.CancelFunc
	allocCancels    []context.CancelFunc
	currentIndex    int
	initialized     bool
	config          Config
	logger          arbor.ILogger
}

// NewPool constructs an uninitialized Pool. Call Init before Acquire.
func NewPool(cfg Config, logger arbor.ILogger) *Pool {
	return &Pool{config: cfg, logger: logger}
}

// Init provisions MaxInstances browser instances. Partial failures during
// provisioning tear down everything already created and return an error;
// there is no "best-effort, fewer browsers than requested" mode because the
// concurrency contract (§4.7) requires the pool size to equal the chosen
// concurrency exactly.
func (p *Pool) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("browser pool already initialized")
	}
	if p.config.MaxInstances <= 0 {
		return fmt.Errorf("max instances must be > 0")
	}

	userAgent := p.config.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}

	browsers := make([]context.Context, 0, p.config.MaxInstances)
	browserCancels := make([]context.CancelFunc, 0, p.config.MaxInstances)
	allocCancels := make([]context.CancelFunc, 0, p.config.MaxInstances)

	for i := 0; i < p.config.MaxInstances; i++ {
		browserCtx, browserCancel, allocCancel, err := p.createBrowserInstance(userAgent)
		if err != nil {
			for _, c := range browserCancels {
				c()
			}
			for _, c := range allocCancels {
				c()
			}
			return fmt.Errorf("create browser instance %d: %w", i, err)
		}
		browsers = append(browsers, browserCtx)
		browserCancels = append(browserCancels, browserCancel)
		allocCancels = append(allocCancels, allocCancel)
	}

	p.browsers = browsers
	p.browserCancels = browserCancels
	p.allocCancels = allocCancels
	p.initialized = true

	p.logger.Info().Int("instances", len(browsers)).Msg("browser pool initialized")
	return nil
}

func (p *Pool) createBrowserInstance(userAgent string) (context.Context, context.CancelFunc, context.CancelFunc, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
	)
	if p.config.Headless {
		opts = append(opts, chromedp.Flag("headless", true))
	}
	if p.config.DisableGPU {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if p.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	opts = append(opts, chromedp.Flag("disable-dev-shm-usage", true))

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	timeout := p.config.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	startupCtx, startupCancel := context.WithTimeout(browserCtx, timeout)
	defer startupCancel()

	if err := chromedp.Run(startupCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, nil, nil, fmt.Errorf("startup navigation failed: %w", err)
	}

	return browserCtx, browserCancel, allocCancel, nil
}

// Acquire returns the next browser in round-robin order. The returned
// ReleaseFunc must be called exactly once when the caller is done with the
// browser (it never closes it; it only updates pool bookkeeping).
func (p *Pool) Acquire() (context.Context, ReleaseFunc, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, nil, fmt.Errorf("browser pool not initialized")
	}
	if len(p.browsers) == 0 {
		return nil, nil, fmt.Errorf("browser pool has no instances")
	}

	idx := p.currentIndex
	p.currentIndex = (p.currentIndex + 1) % len(p.browsers)
	browserCtx := p.browsers[idx]

	return browserCtx, func() { p.release(browserCtx) }, nil
}

func (p *Pool) release(context.Context) {
	// No-op: returning a browser to the pool doesn't need state today since
	// acquisition is round-robin, not a checked-out set. Kept as a real
	// method (not discarded at the call site) because Acquire's contract
	// promises a ReleaseFunc, and a future fairness policy will need this
	// hook.
}

// CreateContext creates a fresh chromedp context off browserCtx and applies
// the anti-detection shim before returning it. Must be called for every new
// context a Scan batch uses; never call chromedp.NewContext directly
// outside this package.
func (p *Pool) CreateContext(browserCtx context.Context, _ ContextOptions) (context.Context, context.CancelFunc, error) {
	ctx, cancel := chromedp.NewContext(browserCtx)
	if err := chromedp.Run(ctx, chromedp.Evaluate(antiDetectionScript, nil)); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("apply anti-detection shim: %w", err)
	}
	return ctx, cancel, nil
}

// Cleanup closes every browser and drains the pool. Safe to call once; a
// second call is a no-op.
func (p *Pool) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	done := make(chan struct{})
	go func() {
		for _, c := range p.browserCancels {
			c()
		}
		for _, c := range p.allocCancels {
			c()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		p.logger.Warn().Msg("browser pool shutdown timed out, proceeding anyway")
	}

	p.browsers = nil
	p.browserCancels = nil
	p.allocCancels = nil
	p.initialized = false
	return nil
}

// Stats reports pool occupancy for diagnostics.
func (p *Pool) Stats() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[string]any{
		"max_instances":    p.config.MaxInstances,
		"active_instances": len(p.browsers),
		"initialized":      p.initialized,
	}
}

// IsInitialized reports whether Init has completed successfully.
func (p *Pool) IsInitialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}
