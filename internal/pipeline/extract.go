package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/validation-engine/internal/browserpool"
	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/node"
	"github.com/ternarybob/validation-engine/internal/platform"
	"github.com/ternarybob/validation-engine/internal/repository"
	"github.com/ternarybob/validation-engine/internal/scanner"
	"github.com/ternarybob/validation-engine/internal/writer"
)

// scanOne acquires a browser (only when the scanner needs one), scans a
// single URL, and releases it — the ad-hoc counterpart of engine.BatchRunner
// for the Extract-* variants, which never need rotation or pacing state
// across a single product (§4.6).
func scanOne(ctx context.Context, pool *browserpool.Pool, s scanner.Scanner, url string) (scanner.Outcome, error) {
	if s.Method() != model.ScanMethodBrowser {
		return s.Scan(ctx, url, nil)
	}

	browserCtx, release, err := pool.Acquire()
	if err != nil {
		return scanner.Outcome{}, fmt.Errorf("acquire browser: %w", err)
	}
	defer release()

	pageCtx, cancel, err := pool.CreateContext(browserCtx, browserpool.ContextOptions{})
	if err != nil {
		return scanner.Outcome{}, fmt.Errorf("create page context: %w", err)
	}
	defer cancel()

	return s.Scan(ctx, url, pageCtx)
}

func resolveScanner(registry scanner.Registry, p model.Platform, logger arbor.ILogger) scanner.Scanner {
	if s, ok := registry.Get(p); ok {
		return s
	}
	return &scanner.BrowserScanner{Platform: p, Extractor: scanner.GenericExtractor{}, Logger: logger}
}

// ExtractByURLInput is a raw product URL whose platform is detected rather
// than supplied.
type ExtractByURLInput struct {
	URL string
}

// ExtractByURLNode scans one URL with no corresponding DB row: useful for
// ad-hoc spot checks of a link a human pasted in. It skips Fetch and Compare
// entirely — the resulting record always has Match=false since there's
// nothing to compare against (§4.6).
type ExtractByURLNode struct {
	Platforms *platform.Registry
	Scanners  scanner.Registry
	Pool      *browserpool.Pool
	OutputDir string
	Now       func() time.Time
}

func (n *ExtractByURLNode) Type() string { return "extract_by_url" }

func (n *ExtractByURLNode) ValidateInput(input any) node.ValidationResult {
	in, ok := input.(ExtractByURLInput)
	if !ok || in.URL == "" {
		return node.ValidationResult{Valid: false, Errors: []string{"extract_by_url: URL is required"}}
	}
	return node.ValidationResult{Valid: true}
}

func (n *ExtractByURLNode) Execute(ctx context.Context, input any, nc *node.Context) node.Result {
	in := input.(ExtractByURLInput)

	p, ok := n.Platforms.DetectPlatform(in.URL)
	if !ok {
		return node.Fail(node.CodeConfigMissing, "extract_by_url: no platform matches "+in.URL)
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	w, ok := nc.Shared.GetResultWriter().(*writer.ResultWriter)
	if !ok {
		w = writer.New(n.OutputDir, p, nc.JobID, now())
		if err := w.Initialize(); err != nil {
			return node.Fail(node.CodeRepositoryError, "extract_by_url: open writer: "+err.Error())
		}
		nc.Shared.SetResultWriter(w)
	}

	s := resolveScanner(n.Scanners, p, nc.Logger)
	productID, _ := n.Platforms.ExtractProductID(in.URL, p)

	outcome, err := scanOne(ctx, n.Pool, s, in.URL)
	rec := buildAdHocRecord(uuid.Nil, productID, in.URL, p, outcome, err, now())
	if err := w.Append(rec); err != nil {
		nc.Logger.Warn().Err(err).Msg("extract_by_url: append failed")
	}

	nc.Logger.Info().Str("url", in.URL).Str("status", string(rec.Status)).Msg("extract_by_url complete")
	return node.Ok(rec)
}

func (n *ExtractByURLNode) Rollback(nc *node.Context) {}

// ExtractByProductSetInput identifies a single catalog row to re-validate.
type ExtractByProductSetInput struct {
	ProductSetID uuid.UUID
}

// ExtractByProductSetNode re-validates one known catalog row end to end:
// it reads the row directly with ProductRepository.GetProduct instead of
// Fetch's paginated query, then scans and compares exactly as Scan would for
// a single item (§4.6).
type ExtractByProductSetNode struct {
	Repo                  repository.ProductRepository
	Scanners              scanner.Registry
	Pool                  *browserpool.Pool
	OutputDir             string
	PriceTolerancePercent float64
	Now                   func() time.Time
}

func (n *ExtractByProductSetNode) Type() string { return "extract_by_product_set" }

func (n *ExtractByProductSetNode) ValidateInput(input any) node.ValidationResult {
	if in, ok := input.(ExtractByProductSetInput); ok && in.ProductSetID != uuid.Nil {
		return node.ValidationResult{Valid: true}
	}
	return node.ValidationResult{Valid: false, Errors: []string{"extract_by_product_set: ProductSetID is required"}}
}

func (n *ExtractByProductSetNode) Execute(ctx context.Context, input any, nc *node.Context) node.Result {
	in := input.(ExtractByProductSetInput)

	product, err := n.Repo.GetProduct(ctx, in.ProductSetID)
	if err != nil {
		return node.Fail(node.CodeRepositoryError, "extract_by_product_set: "+err.Error())
	}
	if product == nil {
		return node.Fail(node.CodeRepositoryError, "extract_by_product_set: product not found")
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	w, ok := nc.Shared.GetResultWriter().(*writer.ResultWriter)
	if !ok {
		w = writer.New(n.OutputDir, nc.Platform, nc.JobID, now())
		if err := w.Initialize(); err != nil {
			return node.Fail(node.CodeRepositoryError, "extract_by_product_set: open writer: "+err.Error())
		}
		nc.Shared.SetResultWriter(w)
	}

	s := resolveScanner(n.Scanners, nc.Platform, nc.Logger)
	outcome, err := scanOne(ctx, n.Pool, s, product.LinkURL)

	rec := model.ComparisonRecord{
		ProductSetID: product.ProductSetID,
		ProductID:    product.ProductID,
		URL:          product.LinkURL,
		Platform:     nc.Platform,
		DB:           *product,
		Timestamp:    now(),
	}
	switch {
	case err != nil:
		rec.Status = model.RecordStatusFailed
		rec.Error = model.ClassifyScanError(err).Error()
	case outcome.IsNotFound:
		rec.Status = model.RecordStatusNotFound
	case outcome.Success:
		rec.Fetch = outcome.Data
		rec.Status = model.RecordStatusSuccess
		rec.Comparison, rec.Match = CompareFields(*product, outcome.Data, CompareOptions{PriceTolerancePercent: n.PriceTolerancePercent})
	default:
		rec.Status = model.RecordStatusFailed
		rec.Error = "scan reported failure with no error"
	}

	if err := w.Append(rec); err != nil {
		nc.Logger.Warn().Err(err).Msg("extract_by_product_set: append failed")
	}

	nc.Logger.Info().Str("product_set_id", product.ProductSetID.String()).Str("status", string(rec.Status)).Msg("extract_by_product_set complete")
	return node.Ok(rec)
}

func (n *ExtractByProductSetNode) Rollback(nc *node.Context) {}

// ExtractMultiPlatformInput asks for the same logical product across every
// platform it's listed on.
type ExtractMultiPlatformInput struct {
	ProductID string
	Platforms []model.Platform
}

// ExtractMultiPlatformNode builds each platform's detail URL for one
// product_id and scans every listing, useful for comparing how the same
// product reads across storefronts without a catalog row on either side
// (§4.6).
type ExtractMultiPlatformNode struct {
	PlatformRegistry *platform.Registry
	Scanners         scanner.Registry
	Pool             *browserpool.Pool
	OutputDir        string
	Now              func() time.Time
}

func (n *ExtractMultiPlatformNode) Type() string { return "extract_multi_platform" }

func (n *ExtractMultiPlatformNode) ValidateInput(input any) node.ValidationResult {
	in, ok := input.(ExtractMultiPlatformInput)
	if !ok || in.ProductID == "" || len(in.Platforms) == 0 {
		return node.ValidationResult{Valid: false, Errors: []string{"extract_multi_platform: ProductID and Platforms are required"}}
	}
	return node.ValidationResult{Valid: true}
}

func (n *ExtractMultiPlatformNode) Execute(ctx context.Context, input any, nc *node.Context) node.Result {
	in := input.(ExtractMultiPlatformInput)

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	w, ok := nc.Shared.GetResultWriter().(*writer.ResultWriter)
	if !ok {
		w = writer.New(n.OutputDir, model.Platform("multi"), nc.JobID, now())
		if err := w.Initialize(); err != nil {
			return node.Fail(node.CodeRepositoryError, "extract_multi_platform: open writer: "+err.Error())
		}
		nc.Shared.SetResultWriter(w)
	}

	var records []model.ComparisonRecord
	for _, p := range in.Platforms {
		url, ok := n.PlatformRegistry.BuildDetailURL(in.ProductID, p)
		if !ok {
			nc.Logger.Warn().Str("platform", string(p)).Msg("extract_multi_platform: no URL template, skipping")
			continue
		}

		s := resolveScanner(n.Scanners, p, nc.Logger)
		outcome, err := scanOne(ctx, n.Pool, s, url)
		rec := buildAdHocRecord(uuid.Nil, in.ProductID, url, p, outcome, err, now())
		if err := w.Append(rec); err != nil {
			nc.Logger.Warn().Err(err).Str("platform", string(p)).Msg("extract_multi_platform: append failed")
		}
		records = append(records, rec)
	}

	nc.Logger.Info().Str("product_id", in.ProductID).Int("platform_count", len(records)).Msg("extract_multi_platform complete")
	return node.Ok(records)
}

func (n *ExtractMultiPlatformNode) Rollback(nc *node.Context) {}

// buildAdHocRecord builds a record for the two Extract variants that have
// no DB row to compare against: Match is always false and Comparison is
// always the zero value, matching the §8 invariant for a record with no
// stored counterpart.
func buildAdHocRecord(productSetID uuid.UUID, productID, url string, p model.Platform, outcome scanner.Outcome, scanErr error, now time.Time) model.ComparisonRecord {
	rec := model.ComparisonRecord{
		ProductSetID: productSetID,
		ProductID:    productID,
		URL:          url,
		Platform:     p,
		Timestamp:    now,
	}
	switch {
	case scanErr != nil:
		rec.Status = model.RecordStatusFailed
		rec.Error = model.ClassifyScanError(scanErr).Error()
	case outcome.IsNotFound:
		rec.Status = model.RecordStatusNotFound
	case outcome.Success:
		rec.Fetch = outcome.Data
		rec.Status = model.RecordStatusSuccess
	default:
		rec.Status = model.RecordStatusFailed
		rec.Error = "scan reported failure with no error"
	}
	return rec
}
