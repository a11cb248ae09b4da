// Package engine implements the validation engine core (§4.7): the small
// coordinator a Scan-family node embeds to drive one horizontal slice of
// the product list ("a batch") through exactly one browser, sequentially,
// with page/context rotation, session recovery after too many consecutive
// failures, and per-product rate pacing.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/validation-engine/internal/browserpool"
	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/scanner"
)

// RotationPolicy bundles the rotation cadence and session-recovery
// threshold read from a platform's workflow.memory_management section and
// VALIDATION_MAX_CONSECUTIVE_FAILURES.
type RotationPolicy struct {
	PageRotationInterval    int
	ContextRotationInterval int
	MaxConsecutiveFailures  int
	EnableGCHints           bool
}

// ScanFunc performs one product's scan against a live browser context. For
// non-browser scanners, page may still be passed through (ignored by the
// scanner) so the same BatchRunner shape works for both transports.
type ScanFunc func(ctx context.Context, product model.ProductSet, page context.Context) (scanner.Outcome, error)

// ResultFunc receives the outcome of one scanned product, in the batch's
// own order, so the caller can build and append a ComparisonRecord.
type ResultFunc func(product model.ProductSet, outcome scanner.Outcome, scanErr error)

// BatchRunner drives one batch of products through one borrowed browser for
// its whole lifetime: acquired from the pool on Run, released when Run
// returns, no matter how it returns.
type BatchRunner struct {
	Pool     *browserpool.Pool
	Policy   RotationPolicy
	WaitTime time.Duration
	Logger   arbor.ILogger
}

// Run scans products in order. A panic inside one product's scan is
// recovered and treated as a failed scan; it never aborts the batch. A
// setup failure (browser acquisition, initial context creation) aborts the
// whole batch and is returned to the caller, who per §7 logs it and lets
// other batches continue.
func (r *BatchRunner) Run(ctx context.Context, products []model.ProductSet, scan ScanFunc, onResult ResultFunc) error {
	if len(products) == 0 {
		return nil
	}

	browserCtx, release, err := r.Pool.Acquire()
	if err != nil {
		return fmt.Errorf("acquire browser: %w", err)
	}
	defer release()

	pageCtx, pageCancel, err := r.Pool.CreateContext(browserCtx, browserpool.ContextOptions{})
	if err != nil {
		return fmt.Errorf("create initial context: %w", err)
	}
	defer func() { pageCancel() }()

	var limiter *rate.Limiter
	if r.WaitTime > 0 {
		limiter = rate.NewLimiter(rate.Every(r.WaitTime), 1)
		// Spend the initial token now so the gap before product 1 is paced
		// like every later gap.
		limiter.Allow()
	}

	consecutiveFailures := 0

	rotateContext := func() error {
		pageCancel()
		newCtx, newCancel, err := r.Pool.CreateContext(browserCtx, browserpool.ContextOptions{})
		if err != nil {
			return fmt.Errorf("rotate context: %w", err)
		}
		pageCtx, pageCancel = newCtx, newCancel
		if r.Policy.EnableGCHints {
			runtime.GC()
		}
		return nil
	}

	rotatePage := func() error {
		if err := chromedp.Run(pageCtx, chromedp.Navigate("about:blank")); err != nil {
			return fmt.Errorf("rotate page: %w", err)
		}
		return nil
	}

	for i, product := range products {
		if i > 0 {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return fmt.Errorf("rate limiter: %w", err)
				}
			}

			switch {
			case r.Policy.ContextRotationInterval > 0 && i%r.Policy.ContextRotationInterval == 0:
				if err := rotateContext(); err != nil {
					return err
				}
			case r.Policy.PageRotationInterval > 0 && i%r.Policy.PageRotationInterval == 0:
				if err := rotatePage(); err != nil {
					return err
				}
			}
		}

		outcome, scanErr := r.runOneScan(ctx, product, pageCtx, scan)

		if scanErr != nil || !outcome.Success {
			consecutiveFailures++
		} else {
			consecutiveFailures = 0
		}

		onResult(product, outcome, scanErr)

		if r.Policy.MaxConsecutiveFailures > 0 && consecutiveFailures >= r.Policy.MaxConsecutiveFailures {
			if err := rotateContext(); err != nil {
				return err
			}
			consecutiveFailures = 0
		}
	}

	return nil
}

// runOneScan recovers a panic from scan so one bad product never takes the
// rest of the batch down with it (§7's BrowserError handling).
func (r *BatchRunner) runOneScan(ctx context.Context, product model.ProductSet, page context.Context, scan ScanFunc) (outcome scanner.Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic during scan: %v", model.ErrBrowserError, rec)
		}
	}()
	return scan(ctx, product, page)
}

// ClampConcurrency applies the §4.7 clamp: requested (or the platform's
// default, or 1) bounded above by the platform's max (or 10).
func ClampConcurrency(requested int, cfg model.Concurrency) int {
	effective := requested
	if effective <= 0 {
		effective = cfg.Default
	}
	if effective <= 0 {
		effective = 1
	}
	max := cfg.Max
	if max <= 0 {
		max = 10
	}
	if effective > max {
		effective = max
	}
	return effective
}

// Split partitions products into n near-equal, order-preserving batches
// using round-robin assignment, so a batch's own slice stays in original
// catalog order (the ordering guarantee §5 requires within one batch).
func Split(products []model.ProductSet, n int) [][]model.ProductSet {
	if n <= 0 {
		n = 1
	}
	batches := make([][]model.ProductSet, n)
	for i, p := range products {
		idx := i % n
		batches[idx] = append(batches[idx], p)
	}
	return batches
}
