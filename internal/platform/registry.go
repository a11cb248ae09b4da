// Package platform implements the PlatformConfig loader and registry: the
// engine's only source of truth for per-platform URL patterns, scan
// strategies, rate limits, and update exclusions.
package platform

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/validation-engine/internal/model"
)

// compiledConfig pairs a loaded PlatformConfig with its pre-compiled
// product-id regex, so ExtractProductID never compiles on the hot path.
type compiledConfig struct {
	cfg       model.PlatformConfig
	idPattern *regexp.Regexp
}

// Registry loads and caches PlatformConfig records from a directory of
// YAML files, one file per platform.
type Registry struct {
	mu       sync.RWMutex
	byName   map[model.Platform]*compiledConfig
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewRegistry constructs an empty Registry; call LoadDir to populate it
// from a directory in one pass, then Load to read a platform's config.
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		byName:   make(map[model.Platform]*compiledConfig),
		validate: validator.New(),
		logger:   logger,
	}
}

// LoadDir reads every *.yaml/*.yml file in dir and registers each as a
// platform config. A single bad file fails the whole load: the registry is
// either fully populated or untouched.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read platform config dir: %w", err)
	}

	staged := make(map[model.Platform]*compiledConfig, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		cc, err := r.loadFile(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		staged[cc.cfg.Platform] = cc
	}

	r.mu.Lock()
	r.byName = staged
	r.mu.Unlock()

	r.logger.Info().Int("platform_count", len(staged)).Str("dir", dir).Msg("platform registry loaded")
	return nil
}

func (r *Registry) loadFile(path string) (*compiledConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg model.PlatformConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := r.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	idPattern, err := regexp.Compile(cfg.URLPattern.ProductIDRegex)
	if err != nil {
		return nil, fmt.Errorf("compile product_id_regex: %w", err)
	}

	if cfg.UpdateExclusions.SkipFields == nil {
		cfg.UpdateExclusions.SkipFields = []string{}
	}

	return &compiledConfig{cfg: cfg, idPattern: idPattern}, nil
}

// Load returns the PlatformConfig for platform, or ErrConfigMissing if it
// was never registered.
func (r *Registry) Load(p model.Platform) (*model.PlatformConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cc, ok := r.byName[p]
	if !ok {
		return nil, fmt.Errorf("platform %q: %w", p, model.ErrConfigMissing)
	}
	cfgCopy := cc.cfg
	return &cfgCopy, nil
}

// DetectPlatform finds the platform whose URLPattern.Domain is the
// longest/most specific match against url's host.
func (r *Registry) DetectPlatform(rawURL string) (model.Platform, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best model.Platform
	bestLen := -1
	for name, cc := range r.byName {
		domain := strings.ToLower(cc.cfg.URLPattern.Domain)
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			if len(domain) > bestLen {
				best = name
				bestLen = len(domain)
			}
		}
	}
	if bestLen < 0 {
		return "", false
	}
	return best, true
}

// ExtractProductID strips the query string from url and applies the
// platform's product-id regex, returning the configured capture group.
func (r *Registry) ExtractProductID(rawURL string, p model.Platform) (string, bool) {
	r.mu.RLock()
	cc, ok := r.byName[p]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}

	stripped := rawURL
	if idx := strings.IndexByte(stripped, '?'); idx >= 0 {
		stripped = stripped[:idx]
	}

	m := cc.idPattern.FindStringSubmatch(stripped)
	group := cc.cfg.URLPattern.ProductIDGroup
	if m == nil || group >= len(m) {
		return "", false
	}
	return m[group], true
}

// BuildDetailURL substitutes {product_id} in the platform's detail URL
// template.
func (r *Registry) BuildDetailURL(productID string, p model.Platform) (string, bool) {
	r.mu.RLock()
	cc, ok := r.byName[p]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	replacer := strings.NewReplacer("{product_id}", productID)
	return replacer.Replace(cc.cfg.URLPattern.DetailURLTemplate), true
}

// GetUpdateExclusions returns the platform's skip-field set. Returns an
// empty (never nil) slice when the platform has no exclusions configured.
func (r *Registry) GetUpdateExclusions(p model.Platform) model.UpdateExclusions {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cc, ok := r.byName[p]
	if !ok {
		return model.UpdateExclusions{SkipFields: []string{}}
	}
	return cc.cfg.UpdateExclusions
}

// Platforms returns every registered platform name, sorted, mostly useful
// for diagnostics and tests.
func (r *Registry) Platforms() []model.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]model.Platform, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
