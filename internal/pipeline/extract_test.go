package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/platform"
	"github.com/ternarybob/validation-engine/internal/repository/memrepo"
	"github.com/ternarybob/validation-engine/internal/scanner"
)

// fakeHTTPScanner never touches a browser, so Extract-* tests don't need a
// real Chrome binary — it stands in for the registered scanner.
type fakeHTTPScanner struct {
	outcome scanner.Outcome
	err     error
}

func (f *fakeHTTPScanner) Method() model.ScanMethod { return model.ScanMethodHTTP }
func (f *fakeHTTPScanner) Scan(_ context.Context, _ string, _ context.Context) (scanner.Outcome, error) {
	return f.outcome, f.err
}

const fixtureYAML = `
platform: fixture
display_name: "Fixture Store"
url_pattern:
  domain: fixture.example
  product_id_regex: "p/(\\d+)"
  product_id_group: 1
  detail_url_template: "https://fixture.example/p/{product_id}"
strategies:
  - type: http
`

func newFixtureRegistry(t *testing.T) *platform.Registry {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fixture.yaml"), []byte(fixtureYAML), 0o644))
	reg := platform.NewRegistry(arbor.NewLogger())
	require.NoError(t, reg.LoadDir(dir))
	return reg
}

func TestExtractByURLNode_DetectsPlatformAndScans(t *testing.T) {
	reg := newFixtureRegistry(t)
	s := &fakeHTTPScanner{outcome: scanner.Outcome{Success: true, Data: &model.ScannedData{ProductName: "Widget"}}}
	scanners := scanner.NewRegistry(map[model.Platform]scanner.Scanner{"fixture": s})

	n := &ExtractByURLNode{Platforms: reg, Scanners: scanners, OutputDir: t.TempDir()}
	nc := testContext(t, "")

	result := n.Execute(context.Background(), ExtractByURLInput{URL: "https://fixture.example/p/123"}, nc)
	require.True(t, result.Success)

	rec := result.Data.(model.ComparisonRecord)
	assert.Equal(t, model.RecordStatusSuccess, rec.Status)
	assert.False(t, rec.Match, "ad-hoc extract has no DB row to match against")
	assert.Equal(t, "123", rec.ProductID)
}

func TestExtractByURLNode_UnknownPlatformFails(t *testing.T) {
	reg := newFixtureRegistry(t)
	n := &ExtractByURLNode{Platforms: reg, Scanners: scanner.NewRegistry(nil), OutputDir: t.TempDir()}
	nc := testContext(t, "")

	result := n.Execute(context.Background(), ExtractByURLInput{URL: "https://unrelated.example/p/1"}, nc)
	assert.False(t, result.Success)
}

func TestExtractByProductSetNode_ComparesAgainstStoredRow(t *testing.T) {
	productSetID := uuid.New()
	store := memrepo.New()
	store.Seed(model.ProductSet{
		ProductSetID: productSetID, LinkURL: "https://fixture.example/p/123",
		ProductName: "Stale Name",
	})

	s := &fakeHTTPScanner{outcome: scanner.Outcome{Success: true, Data: &model.ScannedData{ProductName: "Fresh Name"}}}
	scanners := scanner.NewRegistry(map[model.Platform]scanner.Scanner{"fixture": s})

	n := &ExtractByProductSetNode{Repo: store, Scanners: scanners, OutputDir: t.TempDir()}
	nc := testContext(t, "fixture")

	result := n.Execute(context.Background(), ExtractByProductSetInput{ProductSetID: productSetID}, nc)
	require.True(t, result.Success)

	rec := result.Data.(model.ComparisonRecord)
	assert.Equal(t, model.RecordStatusSuccess, rec.Status)
	assert.False(t, rec.Match)
	assert.False(t, rec.Comparison.ProductName)
}

func TestExtractMultiPlatformNode_ScansEveryPlatform(t *testing.T) {
	reg := newFixtureRegistry(t)
	s := &fakeHTTPScanner{outcome: scanner.Outcome{Success: true, Data: &model.ScannedData{ProductName: "Widget"}}}
	scanners := scanner.NewRegistry(map[model.Platform]scanner.Scanner{"fixture": s})

	n := &ExtractMultiPlatformNode{PlatformRegistry: reg, Scanners: scanners, OutputDir: t.TempDir()}
	nc := testContext(t, "")

	result := n.Execute(context.Background(), ExtractMultiPlatformInput{ProductID: "123", Platforms: []model.Platform{"fixture"}}, nc)
	require.True(t, result.Success)

	records := result.Data.([]model.ComparisonRecord)
	require.Len(t, records, 1)
	assert.Equal(t, model.RecordStatusSuccess, records[0].Status)
}

func TestExtractMultiPlatformNode_SkipsPlatformsWithoutURLTemplate(t *testing.T) {
	reg := newFixtureRegistry(t)
	scanners := scanner.NewRegistry(nil)

	n := &ExtractMultiPlatformNode{PlatformRegistry: reg, Scanners: scanners, OutputDir: t.TempDir()}
	nc := testContext(t, "")

	result := n.Execute(context.Background(), ExtractMultiPlatformInput{ProductID: "1", Platforms: []model.Platform{"nonexistent"}}, nc)
	require.True(t, result.Success)
	assert.Empty(t, result.Data.([]model.ComparisonRecord))
}
