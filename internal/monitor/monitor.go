// Package monitor implements the C9 monitor pipelines (§4.9): variant
// scans driven by a curated banner list instead of a catalog fetch. A
// monitor never touches the product DB — it only scans, records, and
// alerts.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/validation-engine/internal/alert"
	"github.com/ternarybob/validation-engine/internal/browserpool"
	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/node"
	"github.com/ternarybob/validation-engine/internal/repository"
	"github.com/ternarybob/validation-engine/internal/scanner"
	"github.com/ternarybob/validation-engine/internal/writer"
)

// BrowserScanExecutor scans one URL through a short-lived browser context:
// acquire, createContext, scan, release. Unlike engine.BatchRunner there is
// no rotation state to carry, since a monitor run performs exactly one
// scan per acquisition (§4.9).
type BrowserScanExecutor struct {
	Pool *browserpool.Pool
}

func (e *BrowserScanExecutor) Execute(ctx context.Context, s scanner.Scanner, url string) (scanner.Outcome, error) {
	if s.Method() != model.ScanMethodBrowser {
		return s.Scan(ctx, url, nil)
	}

	browserCtx, release, err := e.Pool.Acquire()
	if err != nil {
		return scanner.Outcome{}, fmt.Errorf("acquire browser: %w", err)
	}
	defer release()

	pageCtx, cancel, err := e.Pool.CreateContext(browserCtx, browserpool.ContextOptions{})
	if err != nil {
		return scanner.Outcome{}, fmt.Errorf("create page context: %w", err)
	}
	defer cancel()

	return s.Scan(ctx, url, pageCtx)
}

// Output reports what one monitor run did.
type Output struct {
	Scanned int
	Failed  int
	Alerted int
}

// Node runs one curated banner list through BrowserScanExecutor, streams
// every result to a monitor-prefixed JSONL, and posts an alert for each
// failure that survives the time-window and platform-exclusion filter.
type Node struct {
	Kind      repository.BannerKind
	Banners   repository.BannerRepository
	Scanners  scanner.Registry
	Executor  *BrowserScanExecutor
	Alerter   alert.Alerter
	OutputDir string
	Now       func() time.Time
}

func (n *Node) Type() string { return "monitor_" + string(n.Kind) }

func (n *Node) ValidateInput(_ any) node.ValidationResult {
	return node.ValidationResult{Valid: true}
}

func (n *Node) Execute(ctx context.Context, _ any, nc *node.Context) node.Result {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	banners, err := n.Banners.ListBanners(ctx, n.Kind)
	if err != nil {
		return node.Fail(node.CodeRepositoryError, "monitor: list banners: "+err.Error())
	}

	w := writer.NewMonitor(n.OutputDir, model.Platform(n.Kind), nc.JobID, now())
	if err := w.Initialize(); err != nil {
		return node.Fail(node.CodeRepositoryError, "monitor: open writer: "+err.Error())
	}
	nc.Shared.SetResultWriter(w)

	out := Output{}
	for _, banner := range banners {
		s, ok := n.Scanners.Get(banner.Platform)
		if !ok {
			nc.Logger.Warn().Str("platform", string(banner.Platform)).Msg("monitor: no scanner registered, skipping")
			continue
		}

		outcome, scanErr := n.Executor.Execute(ctx, s, banner.URL)
		rec := buildRecord(banner, outcome, scanErr, now())
		out.Scanned++
		if rec.Status != model.RecordStatusSuccess {
			out.Failed++
		}

		if err := w.Append(rec); err != nil {
			nc.Logger.Warn().Err(err).Msg("monitor: append failed")
		}

		if rec.Status != model.RecordStatusSuccess && n.shouldAlert(banner, nc.Platform, now()) {
			notification := alert.Notification{
				Title:         fmt.Sprintf("%s unreachable: %s", n.Kind, banner.URL),
				Platform:      banner.Platform,
				JobID:         nc.JobID,
				MatchRate:     0,
				TotalCount:    1,
				CountByStatus: map[string]int{string(rec.Status): 1},
				Severity:      alert.SeverityCritical,
				Timestamp:     now(),
			}
			if err := n.Alerter.Send(ctx, notification); err != nil {
				nc.Logger.Warn().Err(err).Str("url", banner.URL).Msg("monitor: alert delivery failed")
			} else {
				out.Alerted++
			}
		}
	}

	if _, err := w.Finalize(); err != nil {
		nc.Logger.Warn().Err(err).Msg("monitor: finalize failed")
	}

	nc.Logger.Info().Str("kind", string(n.Kind)).Int("scanned", out.Scanned).Int("failed", out.Failed).Int("alerted", out.Alerted).Msg("monitor run complete")
	return node.Ok(out)
}

func (n *Node) Rollback(_ *node.Context) {}

// shouldAlert applies the time-window and platform-exclusion rules: a
// banner outside its [StartDate, EndDate] window, or one whose platform is
// in ExcludeFrom, is scanned and recorded but never alerted on — an
// expected-gap suppression, not a scan failure.
func (n *Node) shouldAlert(banner repository.Banner, platform model.Platform, now time.Time) bool {
	if !banner.StartDate.IsZero() && now.Before(banner.StartDate) {
		return false
	}
	if !banner.EndDate.IsZero() && now.After(banner.EndDate) {
		return false
	}
	for _, excluded := range banner.ExcludeFrom {
		if excluded == platform {
			return false
		}
	}
	return true
}

func buildRecord(banner repository.Banner, outcome scanner.Outcome, scanErr error, now time.Time) model.ComparisonRecord {
	rec := model.ComparisonRecord{
		ProductSetID: uuid.Nil,
		URL:          banner.URL,
		Platform:     banner.Platform,
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
