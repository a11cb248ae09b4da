package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/validation-engine/internal/model"
)

const oliveyoungYAML = `
platform: oliveyoung
display_name: "Olive Young"
url_pattern:
  domain: oliveyoung.co.kr
  product_id_regex: "goods/(\\d+)"
  product_id_group: 1
  detail_url_template: "https://www.oliveyoung.co.kr/store/goods/getGoodsDetail.do?goodsNo={product_id}"
strategies:
  - type: browser
workflow:
  rate_limit:
    wait_time_ms: 1000
  concurrency:
    default: 2
    max: 5
  memory_management:
    page_rotation_interval: 10
    context_rotation_interval: 50
update_exclusions:
  skip_fields: ["thumbnail"]
  reason: "thumbnail CDN churns independently of product state"
`

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, "oliveyoung.yaml", oliveyoungYAML)

	reg := NewRegistry(arbor.NewLogger())
	require.NoError(t, reg.LoadDir(dir))
	return reg
}

func TestRegistry_LoadAndGet(t *testing.T) {
	reg := newTestRegistry(t)

	cfg, err := reg.Load("oliveyoung")
	require.NoError(t, err)
	assert.Equal(t, "Olive Young", cfg.DisplayName)
	assert.Equal(t, 1000, cfg.Workflow.RateLimit.WaitTimeMs)
}

func TestRegistry_LoadUnknownPlatform(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Load("unknown")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConfigMissing)
}

func TestRegistry_DetectPlatform(t *testing.T) {
	reg := newTestRegistry(t)

	p, ok := reg.DetectPlatform("https://www.oliveyoung.co.kr/store/goods/getGoodsDetail.do?goodsNo=A000000123456")
	require.True(t, ok)
	assert.Equal(t, model.Platform("oliveyoung"), p)

	_, ok = reg.DetectPlatform("https://example.com/not-a-platform")
	assert.False(t, ok)
}

func TestRegistry_ExtractProductID(t *testing.T) {
	reg := newTestRegistry(t)

	id, ok := reg.ExtractProductID("https://www.oliveyoung.co.kr/store/goods/123456?trackingId=abc", "oliveyoung")
	require.True(t, ok)
	assert.Equal(t, "123456", id)
}

func TestRegistry_BuildDetailURL(t *testing.T) {
	reg := newTestRegistry(t)

	url, ok := reg.BuildDetailURL("999", "oliveyoung")
	require.True(t, ok)
	assert.Contains(t, url, "goodsNo=999")
}

func TestRegistry_GetUpdateExclusions(t *testing.T) {
	reg := newTestRegistry(t)

	excl := reg.GetUpdateExclusions("oliveyoung")
	assert.Equal(t, []string{"thumbnail"}, excl.SkipFields)

	empty := reg.GetUpdateExclusions("unknown")
	assert.Empty(t, empty.SkipFields)
	assert.NotNil(t, empty.SkipFields)
}

func TestRegistry_LoadDir_InvalidRegexFailsWholeLoad(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "broken.yaml", `
platform: broken
display_name: "Broken"
url_pattern:
  domain: broken.example
  product_id_regex: "("
  product_id_group: 1
  detail_url_template: "https://broken.example/{product_id}"
strategies:
  - type: http
`)

	reg := NewRegistry(arbor.NewLogger())
	err := reg.LoadDir(dir)
	require.Error(t, err)

	_, err = reg.Load("broken")
	assert.Error(t, err, "a failed LoadDir must leave the registry empty, not partially populated")
}
