// Package config implements process-level AppConfig (§3.1): TOML, loaded
// once at startup, distinct from the per-platform YAML PlatformConfig
// that internal/platform owns. Grounded in the teacher's
// internal/common/config.go defaults-then-file-then-env layering, scaled
// down to this module's much smaller surface (no KV-replacement pass,
// since there is no secrets-in-TOML use case here).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0"`
	Host string `toml:"host"`
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval" validate:"required"`
	VisibilityTimeout string `toml:"visibility_timeout" validate:"required"`
	MaxReceive        int    `toml:"max_receive" validate:"gte=1"`
}

type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

type PlatformsConfig struct {
	DefinitionsDir string `toml:"definitions_dir" validate:"required"`
}

type OutputConfig struct {
	BaseDir string `toml:"base_dir" validate:"required"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"`
	Format     string   `toml:"format" validate:"oneof=text json"`
	Output     []string `toml:"output"`
	TimeFormat string   `toml:"time_format"`
}

type RateLimitConfig struct {
	DefaultWaitMs int `toml:"default_wait_ms" validate:"gte=0"`
}

type BrowserConfig struct {
	MaxInstances      int    `toml:"max_instances" validate:"gte=1"`
	Headless          bool   `toml:"headless"`
	UserAgent         string `toml:"user_agent"`
	NavigationTimeout string `toml:"navigation_timeout" validate:"required"`
}

type AlertingConfig struct {
	WebhookURL string        `toml:"webhook_url"`
	Timeout    time.Duration `toml:"timeout"`
}

// ValidationConfig tunes the field-comparison pass Scan and Compare run
// inline over every scanned record.
type ValidationConfig struct {
	PriceTolerancePercent float64 `toml:"price_tolerance_percent" validate:"gte=0"`
}

// AppConfig is the process-level configuration loaded once at startup
// (§3.1), distinct from the per-platform PlatformConfig YAML files it
// points at via Platforms.DefinitionsDir.
type AppConfig struct {
	Environment string           `toml:"environment" validate:"oneof=development production"`
	Server      ServerConfig     `toml:"server"`
	Queue       QueueConfig      `toml:"queue"`
	Storage     StorageConfig    `toml:"storage"`
	Platforms   PlatformsConfig  `toml:"platforms"`
	Output      OutputConfig     `toml:"output"`
	Logging     LoggingConfig    `toml:"logging"`
	RateLimit   RateLimitConfig  `toml:"rate_limit"`
	Browser     BrowserConfig    `toml:"browser"`
	Alerting    AlertingConfig   `toml:"alerting"`
	Validation  ValidationConfig `toml:"validation"`
}

// Default returns the configuration used when no file overrides a field,
// the same role NewDefaultConfig plays for the teacher's Config.
func Default() *AppConfig {
	return &AppConfig{
		Environment: "development",
		Server:      ServerConfig{Port: 8080, Host: "localhost"},
		Queue:       QueueConfig{PollInterval: "2s", VisibilityTimeout: "5m", MaxReceive: 3},
		Storage:     StorageConfig{Badger: BadgerConfig{Path: "./data/queue"}},
		Platforms:   PlatformsConfig{DefinitionsDir: "./platforms"},
		Output:      OutputConfig{BaseDir: "./results"},
		Logging:     LoggingConfig{Level: "info", Format: "text", Output: []string{"stdout"}, TimeFormat: "15:04:05.000"},
		RateLimit:   RateLimitConfig{DefaultWaitMs: 500},
		Browser:     BrowserConfig{MaxInstances: 3, Headless: true, NavigationTimeout: "30s"},
		Alerting:    AlertingConfig{Timeout: 10 * time.Second},
		Validation:  ValidationConfig{PriceTolerancePercent: 0},
	}
}

// NavigationTimeout parses Browser.NavigationTimeout, falling back to 30s
// on a bad value for the same reason PollInterval does.
func (c *AppConfig) NavigationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Browser.NavigationTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Load reads and merges zero or more TOML files over Default(), the same
// later-file-wins layering as the teacher's LoadFromFiles, then validates
// the result. An empty paths list returns Default() with only the
// environment overrides applied.
func Load(paths ...string) (*AppConfig, error) {
	cfg := Default()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets a small set of environment variables win over
// file configuration, mirroring the teacher's env-beats-file priority
// without replicating its full QUAERO_*/GO_ENV surface.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("VALIDATION_ENGINE_ENV"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("VALIDATION_ENGINE_OUTPUT_DIR"); v != "" {
		cfg.Output.BaseDir = v
	}
	if v := os.Getenv("VALIDATION_ENGINE_WEBHOOK_URL"); v != "" {
		cfg.Alerting.WebhookURL = v
	}
}

// PollInterval parses Queue.PollInterval, falling back to 2s on a bad
// value rather than failing a worker loop that's already running.
func (c *AppConfig) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Queue.PollInterval)
	if err != nil {
		return 2 * time.Second
	}
	return d
}
