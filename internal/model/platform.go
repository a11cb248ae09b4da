package model

// Platform is a short opaque identifier for one e-commerce site. It drives
// configuration lookup, queue keys, URL-pattern matching, and update
// exclusion rules.
type Platform string

// SaleStatus is the canonical sale-status vocabulary every scanner's
// platform-specific tokens must normalize onto.
type SaleStatus string

const (
	SaleStatusOnSale    SaleStatus = "on_sale"
	SaleStatusSoldOut   SaleStatus = "sold_out"
	SaleStatusOffSale   SaleStatus = "off_sale"
	SaleStatusPreOrder  SaleStatus = "pre_order"
	SaleStatusBackorder SaleStatus = "backorder"
)

// ScanMethod selects which transport a Scanner uses to reach a platform.
type ScanMethod string

const (
	ScanMethodBrowser ScanMethod = "browser"
	ScanMethodHTTP    ScanMethod = "http"
	ScanMethodGraphQL ScanMethod = "graphql"
)

// URLPattern describes how product detail pages and product ids relate for
// one platform.
type URLPattern struct {
	Domain            string `yaml:"domain" validate:"required"`
	ProductIDRegex    string `yaml:"product_id_regex" validate:"required"`
	ProductIDGroup    int    `yaml:"product_id_group" validate:"gte=0"`
	DetailURLTemplate string `yaml:"detail_url_template" validate:"required"`
}

// Strategy is one ordered scan strategy entry; the first whose Type the
// registry can satisfy for a platform wins.
type Strategy struct {
	Type    ScanMethod     `yaml:"type" validate:"required,oneof=browser http graphql"`
	Options map[string]any `yaml:"options"`
}

// RateLimit bounds how often a platform's queue may start a new job.
type RateLimit struct {
	WaitTimeMs int `yaml:"wait_time_ms" validate:"gte=0"`
}

// Concurrency bounds how many scan batches a Scan node may run in parallel
// for this platform.
type Concurrency struct {
	Default int `yaml:"default" validate:"gte=0"`
	Max     int `yaml:"max" validate:"gte=0"`
}

// MemoryManagement controls page/context rotation cadence inside a batch.
type MemoryManagement struct {
	PageRotationInterval    int  `yaml:"page_rotation_interval" validate:"gte=0"`
	ContextRotationInterval int  `yaml:"context_rotation_interval" validate:"gte=0"`
	EnableGCHints           bool `yaml:"enable_gc_hints"`
}

// Workflow groups the knobs a job's pipeline consults while running.
type Workflow struct {
	RateLimit        RateLimit        `yaml:"rate_limit"`
	Concurrency      Concurrency      `yaml:"concurrency"`
	MemoryManagement MemoryManagement `yaml:"memory_management"`
}

// UpdateExclusions names DB fields this platform's Update node must never
// overwrite, and why.
type UpdateExclusions struct {
	SkipFields []string `yaml:"skip_fields"`
	Reason     string   `yaml:"reason"`
}

// ScanConfig carries small per-platform scan toggles that don't warrant
// their own top-level section.
type ScanConfig struct {
	SkipScreenshot bool `yaml:"skip_screenshot"`
}

// PlatformConfig is the typed, validated settings record for one platform,
// loaded from one YAML file.
type PlatformConfig struct {
	Platform         Platform         `yaml:"platform" validate:"required"`
	DisplayName      string           `yaml:"display_name" validate:"required"`
	URLPattern       URLPattern       `yaml:"url_pattern"`
	Strategies       []Strategy       `yaml:"strategies" validate:"required,min=1,dive"`
	Workflow         Workflow         `yaml:"workflow"`
	UpdateExclusions UpdateExclusions `yaml:"update_exclusions"`
	ScanConfig       ScanConfig       `yaml:"scan_config"`
}
