// Package scanner implements the uniform scan(url, page?) contract over
// browser-driven and API-driven extraction back-ends (§4.3), grounded in
// the crawler package's goquery-based DOM extraction idiom and its
// per-job HTTP client resolution pattern.
package scanner

import (
	"context"

	"github.com/ternarybob/validation-engine/internal/model"
)

// Outcome is what Scan returns for one product URL.
type Outcome struct {
	Success    bool
	Data       *model.ScannedData
	IsNotFound bool
	Source     model.ScanMethod
	Err        error
}

// Scanner abstracts one platform's extraction behavior behind a single
// method regardless of transport.
type Scanner interface {
	// Method reports which transport this scanner uses.
	Method() model.ScanMethod

	// Scan fetches and normalizes one product. page is a chromedp context
	// and is required (non-nil) for browser scanners; ignored otherwise.
	Scan(ctx context.Context, url string, page context.Context) (Outcome, error)
}

// Registry resolves a Scanner by platform.
type Registry interface {
	Get(platform model.Platform) (Scanner, bool)
}

// staticRegistry is the only Registry implementation: scanners are
// constructed once at startup (constructor injection, §9) and never
// change at runtime.
type staticRegistry struct {
	scanners map[model.Platform]Scanner
}

// NewRegistry builds a Registry from a fixed platform->Scanner map.
func NewRegistry(scanners map[model.Platform]Scanner) Registry {
	cp := make(map[model.Platform]Scanner, len(scanners))
	for k, v := range scanners {
		cp[k] = v
	}
	return &staticRegistry{scanners: cp}
}

func (r *staticRegistry) Get(platform model.Platform) (Scanner, bool) {
	s, ok := r.scanners[platform]
	return s, ok
}
