// Command validation-engine boots the multi-platform product validation
// pipeline: it loads AppConfig and every platform's PlatformConfig, wires
// the typed-node runtime and a per-platform queue worker, then serves
// until SIGINT/SIGTERM, the same compose-then-serve-then-drain shape as
// cmd/quaero/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/banner"

	"github.com/ternarybob/validation-engine/internal/alert"
	"github.com/ternarybob/validation-engine/internal/browserpool"
	appconfig "github.com/ternarybob/validation-engine/internal/config"
	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/monitor"
	"github.com/ternarybob/validation-engine/internal/node"
	"github.com/ternarybob/validation-engine/internal/pipeline"
	"github.com/ternarybob/validation-engine/internal/platform"
	"github.com/ternarybob/validation-engine/internal/repository"
	"github.com/ternarybob/validation-engine/internal/repository/memrepo"
	"github.com/ternarybob/validation-engine/internal/scanner"
	"github.com/ternarybob/validation-engine/internal/workqueue"
)

// validateWorkflowID is the catalog-validation workflow this example
// binary serves: fetch the catalog, scan it, validate/compare/save each
// record, push corrected fields back, then notify. Notify runs with
// OnErrorContinue since a failed chat post must never fail an otherwise
// successful validation run (§4.6).
const validateWorkflowID = "validate_catalog"

// configPaths allows -config to be given multiple times; later files
// override earlier ones, the same idiom as cmd/quaero/main.go's flag.
type configPaths []string

func (c *configPaths) String() string { return fmt.Sprintf("%v", *c) }
func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var configFiles configPaths

func init() {
	flag.Var(&configFiles, "config", "AppConfig TOML path (repeatable, later overrides earlier)")
	flag.Var(&configFiles, "c", "AppConfig TOML path (shorthand)")
}

func main() {
	flag.Parse()

	cfg, err := appconfig.Load(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	printBanner(cfg, logger)

	platforms := platform.NewRegistry(logger)
	if err := platforms.LoadDir(cfg.Platforms.DefinitionsDir); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.Platforms.DefinitionsDir).Msg("failed to load platform definitions")
	}

	pool := browserpool.NewPool(browserpool.Config{
		MaxInstances:      cfg.Browser.MaxInstances,
		UserAgent:         cfg.Browser.UserAgent,
		Headless:          cfg.Browser.Headless,
		NavigationTimeout: cfg.NavigationTimeout(),
	}, logger)
	if err := pool.Init(); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize browser pool")
	}
	defer pool.Cleanup()

	scanners := buildScanners(platforms, logger)
	store := memrepo.New()
	alerter := resolveAlerter(cfg, logger)

	registry := node.NewRegistry()
	registerPipelineNodes(registry, store, scanners, pool, cfg, alerter)
	registerExtractNodes(registry, platforms, store, scanners, pool, cfg)
	for _, kind := range []repository.BannerKind{
		repository.BannerKindActive,
		repository.BannerKindPick,
		repository.BannerKindCollabo,
	} {
		registry.Register(&monitor.Node{
			Kind:      kind,
			Banners:   store,
			Scanners:  scanners,
			Executor:  &monitor.BrowserScanExecutor{Pool: pool},
			Alerter:   alerter,
			OutputDir: cfg.Output.BaseDir,
		})
	}

	runner := node.NewRunner(registry)
	// The Extract-* nodes are ad-hoc, single-step workflows rather than
	// stages of validate_catalog: each scans one URL/product/product-id
	// outside of a catalog Fetch, so there's nothing upstream for them to
	// chain after (§4.6).
	workflows := workqueue.StaticWorkflows{
		validateWorkflowID: {
			ID: validateWorkflowID,
			Steps: []node.Step{
				{NodeType: "fetch", Input: pipeline.FetchInput{}},
				{NodeType: "scan"},
				{NodeType: "validate", Input: pipeline.ValidateInput{}},
				{NodeType: "compare", Input: pipeline.CompareInput{PriceTolerancePercent: cfg.Validation.PriceTolerancePercent}},
				{NodeType: "save"},
				{NodeType: "update", Input: pipeline.UpdateInput{}},
				{NodeType: "notify", OnError: node.OnErrorContinue},
			},
		},
		"extract_by_url": {
			ID:    "extract_by_url",
			Steps: []node.Step{{NodeType: "extract_by_url"}},
		},
		"extract_by_product_set": {
			ID:    "extract_by_product_set",
			Steps: []node.Step{{NodeType: "extract_by_product_set"}},
		},
		"extract_multi_platform": {
			ID:    "extract_multi_platform",
			Steps: []node.Step{{NodeType: "extract_multi_platform"}},
		},
	}

	db, err := workqueue.OpenStore(cfg.Storage.Badger.Path, cfg.Storage.Badger.ResetOnStartup, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open queue store")
	}
	defer db.Close()

	qstore := workqueue.NewStore(db.Store())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	platformNames := platforms.Platforms()
	loops := make([]*workqueue.WorkerLoop, 0, len(platformNames))
	for _, p := range platformNames {
		pcfg, err := platforms.Load(p)
		if err != nil {
			logger.Warn().Err(err).Str("platform", string(p)).Msg("skipping worker loop: platform config failed to load")
			continue
		}
		loop := &workqueue.WorkerLoop{
			Store:       qstore,
			Platform:    p,
			Workflows:   workflows,
			Runner:      runner,
			WaitTime:    time.Duration(pcfg.Workflow.RateLimit.WaitTimeMs) * time.Millisecond,
			PollEvery:   cfg.PollInterval(),
			Logger:      logger,
			PlatformCfg: pcfg,
		}
		loop.Start(ctx)
		loops = append(loops, loop)
	}

	maintenance := workqueue.NewMaintenance(qstore, db.BadgerDB(), logger)
	if err := maintenance.Start(workqueue.DefaultMaintenanceSchedule); err != nil {
		logger.Warn().Err(err).Msg("failed to start maintenance sweep")
	}

	logger.Info().Int("platforms", len(loops)).Str("output_dir", cfg.Output.BaseDir).Msg("validation engine ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received, finishing in-flight jobs")
	for _, loop := range loops {
		loop.Stop()
	}
	maintenance.Stop()
	cancel()
	logger.Info().Msg("validation engine stopped")
}

func buildLogger(cfg *appconfig.AppConfig) arbor.ILogger {
	logger := arbor.NewLogger()

	wantsConsole := len(cfg.Logging.Output) == 0
	for _, out := range cfg.Logging.Output {
		if out == "stdout" || out == "console" {
			wantsConsole = true
		}
	}
	if wantsConsole {
		logger = logger.WithConsoleWriter(models.WriterConfiguration{
			Type:             models.LogWriterTypeConsole,
			TimeFormat:       cfg.Logging.TimeFormat,
			DisableTimestamp: false,
		})
	}

	return logger.WithLevelFromString(cfg.Logging.Level)
}

func printBanner(cfg *appconfig.AppConfig, logger arbor.ILogger) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Println()
	b.PrintTopLine()
	b.PrintCenteredText("VALIDATION ENGINE")
	b.PrintCenteredText("Multi-Platform Product Validation Pipeline")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Environment", cfg.Environment, 20)
	b.PrintKeyValue("Platforms Dir", cfg.Platforms.DefinitionsDir, 20)
	b.PrintKeyValue("Output Dir", cfg.Output.BaseDir, 20)
	b.PrintKeyValue("Queue Backend", "badger", 20)
	b.PrintBottomLine()
	fmt.Println()

	logger.Info().
		Str("environment", cfg.Environment).
		Str("output_dir", cfg.Output.BaseDir).
		Str("platforms_dir", cfg.Platforms.DefinitionsDir).
		Msg("validation engine starting")
}

// buildScanners constructs a browser-driven Scanner for every loaded
// platform whose first declared strategy is "browser". Platforms whose
// only strategy is http/graphql need a platform-specific JSONDecoder this
// module doesn't ship (§4.3 leaves decoding entirely platform-specific),
// so those are left unregistered here; ScanNode already falls back to a
// generic BrowserScanner per-platform when Scanners.Get misses (scan.go),
// so an unregistered platform still runs, just defensively.
func buildScanners(platforms *platform.Registry, logger arbor.ILogger) scanner.Registry {
	built := make(map[model.Platform]scanner.Scanner)
	for _, p := range platforms.Platforms() {
		pcfg, err := platforms.Load(p)
		if err != nil || len(pcfg.Strategies) == 0 {
			continue
		}
		if pcfg.Strategies[0].Type == model.ScanMethodBrowser {
			built[p] = &scanner.BrowserScanner{
				Platform:  p,
				Extractor: scanner.GenericExtractor{},
				Logger:    logger,
			}
		}
	}
	return scanner.NewRegistry(built)
}

func registerPipelineNodes(registry *node.Registry, store *memrepo.Store, scanners scanner.Registry, pool *browserpool.Pool, cfg *appconfig.AppConfig, alerter alert.Alerter) {
	registry.Register(&pipeline.FetchNode{Repo: store, OutputDir: cfg.Output.BaseDir})
	registry.Register(&pipeline.ScanNode{
		Scanners:              scanners,
		Pool:                  pool,
		PriceTolerancePercent: cfg.Validation.PriceTolerancePercent,
	})
	registry.Register(&pipeline.ValidateNode{})
	registry.Register(&pipeline.CompareNode{})
	registry.Register(&pipeline.SaveNode{})
	registry.Register(&pipeline.UpdateNode{Updates: store, History: store})
	registry.Register(&pipeline.NotifyNode{Alerter: alerter})
}

// registerExtractNodes wires the three single-record extraction entry
// points (extract.go) behind the extract_by_url / extract_by_product_set /
// extract_multi_platform workflows: ad-hoc operator-triggered scans that sit
// outside validate_catalog's fetch-then-scan chain, for pulling one product's
// current state on demand rather than waiting on the next catalog run.
func registerExtractNodes(registry *node.Registry, platforms *platform.Registry, store *memrepo.Store, scanners scanner.Registry, pool *browserpool.Pool, cfg *appconfig.AppConfig) {
	registry.Register(&pipeline.ExtractByURLNode{
		Platforms: platforms,
		Scanners:  scanners,
		Pool:      pool,
		OutputDir: cfg.Output.BaseDir,
	})
	registry.Register(&pipeline.ExtractByProductSetNode{
		Repo:                  store,
		Scanners:              scanners,
		Pool:                  pool,
		OutputDir:             cfg.Output.BaseDir,
		PriceTolerancePercent: cfg.Validation.PriceTolerancePercent,
	})
	registry.Register(&pipeline.ExtractMultiPlatformNode{
		PlatformRegistry: platforms,
		Scanners:         scanners,
		Pool:             pool,
		OutputDir:        cfg.Output.BaseDir,
	})
}

func resolveAlerter(cfg *appconfig.AppConfig, logger arbor.ILogger) alert.Alerter {
	if cfg.Alerting.WebhookURL == "" {
		return &alert.LoggingAlerter{Logger: logger}
	}
	return alert.NewWebhookAlerter(cfg.Alerting.WebhookURL, nil)
}
