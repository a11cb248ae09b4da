package pipeline

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/validation-engine/internal/browserpool"
	"github.com/ternarybob/validation-engine/internal/engine"
	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/node"
	"github.com/ternarybob/validation-engine/internal/scanner"
	"github.com/ternarybob/validation-engine/internal/writer"
)

// defaultMaxConsecutiveFailures mirrors VALIDATION_MAX_CONSECUTIVE_FAILURES's
// documented default (§6) when a ScanNode isn't configured with its own.
const defaultMaxConsecutiveFailures = 2

// ScanInput optionally overrides the platform's default concurrency for
// this one invocation; zero means "use the platform config".
type ScanInput struct {
	Concurrency int
}

// ScanOutput summarizes what one Scan invocation appended, mostly useful
// for tests and logging — the JSONL file itself is the durable record.
type ScanOutput struct {
	Total    int
	Failures int
}

// ScanNode consumes FetchOutput.Products (read from shared state, not from
// its own Input, since Fetch is the sole owner of original_products),
// splits them into concurrent batches, scans each through C2+C3+C7, and
// streams a full ComparisonRecord per product through C4 immediately —
// Compare's per-field logic runs inline here rather than in a later pass,
// so a record is complete the moment it's appended (§4.6).
type ScanNode struct {
	Scanners              scanner.Registry
	Pool                  *browserpool.Pool
	MaxConsecutiveFailures int
	PriceTolerancePercent float64
	Now                   func() time.Time
}

func (n *ScanNode) Type() string { return "scan" }

func (n *ScanNode) ValidateInput(input any) node.ValidationResult {
	if input == nil {
		return node.ValidationResult{Valid: true}
	}
	if _, ok := input.(ScanInput); !ok {
		return node.ValidationResult{Valid: false, Errors: []string{"scan: input must be a ScanInput"}}
	}
	return node.ValidationResult{Valid: true}
}

func (n *ScanNode) Execute(ctx context.Context, input any, nc *node.Context) node.Result {
	in, _ := input.(ScanInput)

	products := nc.Shared.GetOriginalProducts()
	if len(products) == 0 {
		nc.Logger.Info().Msg("scan: empty catalog, nothing to do")
		return node.Ok(ScanOutput{})
	}

	w, ok := nc.Shared.GetResultWriter().(*writer.ResultWriter)
	if !ok {
		return node.Fail(node.CodeRepositoryError, "scan: result writer not initialized (Fetch must run first)")
	}

	if nc.PlatformConfig == nil {
		return node.Fail(node.CodeConfigMissing, fmt.Sprintf("scan: no platform config for %s", nc.Platform))
	}
	cfg := nc.PlatformConfig

	s, ok := n.Scanners.Get(nc.Platform)
	if !ok {
		nc.Logger.Warn().Str("platform", string(nc.Platform)).Msg("no registered scanner, using defensive generic fallback")
		s = &scanner.BrowserScanner{Platform: nc.Platform, Extractor: scanner.GenericExtractor{}, Logger: nc.Logger}
	}

	concurrency := engine.ClampConcurrency(in.Concurrency, cfg.Workflow.Concurrency)
	batches := engine.Split(products, concurrency)

	maxFailures := n.MaxConsecutiveFailures
	if maxFailures <= 0 {
		if v, err := strconv.Atoi(os.Getenv("VALIDATION_MAX_CONSECUTIVE_FAILURES")); err == nil && v > 0 {
			maxFailures = v
		}
	}
	if maxFailures <= 0 {
		maxFailures = defaultMaxConsecutiveFailures
	}
	policy := engine.RotationPolicy{
		PageRotationInterval:    cfg.Workflow.MemoryManagement.PageRotationInterval,
		ContextRotationInterval: cfg.Workflow.MemoryManagement.ContextRotationInterval,
		MaxConsecutiveFailures:  maxFailures,
		EnableGCHints:           cfg.Workflow.MemoryManagement.EnableGCHints,
	}
	waitTime := time.Duration(cfg.Workflow.RateLimit.WaitTimeMs) * time.Millisecond

	now := time.Now()
	if n.Now != nil {
		now = n.Now()
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		total    int
		failures int
	)

	appendResult := func(product model.ProductSet, outcome scanner.Outcome, scanErr error) {
		rec := n.buildRecord(product, outcome, scanErr, nc.Platform, now)
		if err := w.Append(rec); err != nil {
			nc.Logger.Warn().Err(err).Str("product_set_id", product.ProductSetID.String()).Msg("failed to append scan record")
		}
		mu.Lock()
		total++
		if rec.Status != model.RecordStatusSuccess {
			failures++
		}
		mu.Unlock()
	}

	for _, batch := range batches {
		if len(batch) == 0 {
			continue
		}
		wg.Add(1)
		go func(batch []model.ProductSet) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					nc.Logger.Error().Interface("panic", r).Int("batch_size", len(batch)).Msg("scan batch recovered from panic")
				}
			}()

			var err error
			if s.Method() == model.ScanMethodBrowser {
				runner := &engine.BatchRunner{Pool: n.Pool, Policy: policy, WaitTime: waitTime, Logger: nc.Logger}
				err = runner.Run(ctx, batch, func(ctx context.Context, p model.ProductSet, page context.Context) (scanner.Outcome, error) {
					return s.Scan(ctx, p.LinkURL, page)
				}, appendResult)
			} else {
				err = runAPIBatch(ctx, batch, waitTime, func(ctx context.Context, p model.ProductSet) (scanner.Outcome, error) {
					return s.Scan(ctx, p.LinkURL, nil)
				}, appendResult)
			}
			if err != nil {
				// Batch-level error: logged, abort this batch only, others
				// continue (§7 propagation policy).
				nc.Logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("scan batch aborted")
			}
		}(batch)
	}
	wg.Wait()

	nc.Logger.Info().Int("total", total).Int("failures", failures).Msg("scan complete")
	return node.Ok(ScanOutput{Total: total, Failures: failures})
}

func (n *ScanNode) Rollback(nc *node.Context) {
	// Scan's side effect is JSONL lines already durably appended one at a
	// time; there is nothing to undo, matching §4.4's "durable after
	// Append" guarantee — a failed Scan still leaves a valid partial file.
}

func (n *ScanNode) buildRecord(product model.ProductSet, outcome scanner.Outcome, scanErr error, platform model.Platform, now time.Time) model.ComparisonRecord {
	rec := model.ComparisonRecord{
		ProductSetID: product.ProductSetID,
		ProductID:    product.ProductID,
		URL:          product.LinkURL,
		Platform:     platform,
		DB:           product,
		Timestamp:    now,
	}

	switch {
	case scanErr != nil:
		classified := model.ClassifyScanError(scanErr)
		rec.Status = model.RecordStatusFailed
		rec.Error = classified.Error()
	case outcome.IsNotFound:
		rec.Status = model.RecordStatusNotFound
	case outcome.Success:
		rec.Fetch = outcome.Data
		rec.Status = model.RecordStatusSuccess
		rec.Comparison, rec.Match = CompareFields(product, outcome.Data, CompareOptions{PriceTolerancePercent: n.PriceTolerancePercent})
	default:
		rec.Status = model.RecordStatusFailed
		rec.Error = "scan reported failure with no error"
	}

	return rec
}

// runAPIBatch drives HTTP/GraphQL scanners, which need no browser context
// and so skip engine.BatchRunner's pool acquisition and rotation entirely
// — only the rate-limit pacing between iterations still applies.
func runAPIBatch(ctx context.Context, products []model.ProductSet, waitTime time.Duration, scan func(context.Context, model.ProductSet) (scanner.Outcome, error), onResult func(model.ProductSet, scanner.Outcome, error)) error {
	var limiter *rate.Limiter
	if waitTime > 0 {
		limiter = rate.NewLimiter(rate.Every(waitTime), 1)
		// Spend the initial token now so the gap before product 1 is paced
		// like every later gap.
		limiter.Allow()
	}

	for i, product := range products {
		if i > 0 && limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}

		outcome, err := func() (o scanner.Outcome, e error) {
			defer func() {
				if rec := recover(); rec != nil {
					e = fmt.Errorf("%w: panic during scan: %v", model.ErrBrowserError, rec)
				}
			}()
			return scan(ctx, product)
		}()
		onResult(product, outcome, err)
	}
	return nil
}
