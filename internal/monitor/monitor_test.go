package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/validation-engine/internal/alert"
	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/node"
	"github.com/ternarybob/validation-engine/internal/repository"
	"github.com/ternarybob/validation-engine/internal/scanner"
)

type stubBanners struct {
	banners []repository.Banner
}

func (s *stubBanners) ListBanners(_ context.Context, _ repository.BannerKind) ([]repository.Banner, error) {
	return s.banners, nil
}

type stubMonitorScanner struct {
	outcome scanner.Outcome
	err     error
}

func (s *stubMonitorScanner) Method() model.ScanMethod { return model.ScanMethodHTTP }
func (s *stubMonitorScanner) Scan(_ context.Context, _ string, _ context.Context) (scanner.Outcome, error) {
	return s.outcome, s.err
}

type stubAlerter struct {
	sent []alert.Notification
}

func (a *stubAlerter) Send(_ context.Context, n alert.Notification) error {
	a.sent = append(a.sent, n)
	return nil
}

func testNodeContext(t *testing.T) *node.Context {
	t.Helper()
	return &node.Context{JobID: "job-1", Platform: "amazon", Logger: arbor.NewLogger(), Shared: node.NewSharedState()}
}

func TestMonitorNode_SuccessfulScanDoesNotAlert(t *testing.T) {
	banners := &stubBanners{banners: []repository.Banner{
		{ID: uuid.New(), Kind: repository.BannerKindActive, Platform: "amazon", URL: "https://amazon.example/p/1"},
	}}
	scanners := scanner.NewRegistry(map[model.Platform]scanner.Scanner{
		"amazon": &stubMonitorScanner{outcome: scanner.Outcome{Success: true, Data: &model.ScannedData{}}},
	})
	a := &stubAlerter{}

	n := &Node{Kind: repository.BannerKindActive, Banners: banners, Scanners: scanners, Executor: &BrowserScanExecutor{}, Alerter: a, OutputDir: t.TempDir()}
	result := n.Execute(context.Background(), nil, testNodeContext(t))
	require.True(t, result.Success)

	out := result.Data.(Output)
	assert.Equal(t, 1, out.Scanned)
	assert.Equal(t, 0, out.Failed)
	assert.Equal(t, 0, out.Alerted)
	assert.Empty(t, a.sent)
}

func TestMonitorNode_FailureWithinWindowAlerts(t *testing.T) {
	banners := &stubBanners{banners: []repository.Banner{
		{ID: uuid.New(), Kind: repository.BannerKindCollabo, Platform: "amazon", URL: "https://amazon.example/p/2"},
	}}
	scanners := scanner.NewRegistry(map[model.Platform]scanner.Scanner{
		"amazon": &stubMonitorScanner{outcome: scanner.Outcome{IsNotFound: true}},
	})
	a := &stubAlerter{}

	n := &Node{Kind: repository.BannerKindCollabo, Banners: banners, Scanners: scanners, Executor: &BrowserScanExecutor{}, Alerter: a, OutputDir: t.TempDir()}
	result := n.Execute(context.Background(), nil, testNodeContext(t))
	require.True(t, result.Success)

	out := result.Data.(Output)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 1, out.Alerted)
	require.Len(t, a.sent, 1)
	assert.Equal(t, alert.SeverityCritical, a.sent[0].Severity)
}

func TestMonitorNode_FailureOutsideWindowSuppressesAlert(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	pastEnd := time.Now().Add(-24 * time.Hour)
	banners := &stubBanners{banners: []repository.Banner{
		{ID: uuid.New(), Kind: repository.BannerKindPick, Platform: "amazon", URL: "https://amazon.example/p/3", StartDate: past, EndDate: pastEnd},
	}}
	scanners := scanner.NewRegistry(map[model.Platform]scanner.Scanner{
		"amazon": &stubMonitorScanner{outcome: scanner.Outcome{IsNotFound: true}},
	})
	a := &stubAlerter{}

	n := &Node{Kind: repository.BannerKindPick, Banners: banners, Scanners: scanners, Executor: &BrowserScanExecutor{}, Alerter: a, OutputDir: t.TempDir()}
	result := n.Execute(context.Background(), nil, testNodeContext(t))
	require.True(t, result.Success)

	out := result.Data.(Output)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 0, out.Alerted, "a banner whose window already ended must not page anyone")
	assert.Empty(t, a.sent)
}

func TestMonitorNode_FailureOnExcludedPlatformSuppressesAlert(t *testing.T) {
	banners := &stubBanners{banners: []repository.Banner{
		{ID: uuid.New(), Kind: repository.BannerKindActive, Platform: "amazon", URL: "https://amazon.example/p/4", ExcludeFrom: []model.Platform{"amazon"}},
	}}
	scanners := scanner.NewRegistry(map[model.Platform]scanner.Scanner{
		"amazon": &stubMonitorScanner{outcome: scanner.Outcome{IsNotFound: true}},
	})
	a := &stubAlerter{}

	n := &Node{Kind: repository.BannerKindActive, Banners: banners, Scanners: scanners, Executor: &BrowserScanExecutor{}, Alerter: a, OutputDir: t.TempDir()}
	result := n.Execute(context.Background(), nil, testNodeContext(t))
	require.True(t, result.Success)
	assert.Equal(t, 0, result.Data.(Output).Alerted)
}

func TestMonitorNode_MissingScannerIsSkippedNotFailed(t *testing.T) {
	banners := &stubBanners{banners: []repository.Banner{
		{ID: uuid.New(), Kind: repository.BannerKindActive, Platform: "unknown", URL: "https://unknown.example/p/5"},
	}}
	n := &Node{Kind: repository.BannerKindActive, Banners: banners, Scanners: scanner.NewRegistry(nil), Executor: &BrowserScanExecutor{}, Alerter: &stubAlerter{}, OutputDir: t.TempDir()}

	result := n.Execute(context.Background(), nil, testNodeContext(t))
	require.True(t, result.Success)
	assert.Equal(t, 0, result.Data.(Output).Scanned)
}
