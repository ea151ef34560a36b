package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/handlers"
	"clinic-leads-collector/internal/interfaces"
	"clinic-leads-collector/internal/models"
	"clinic-leads-collector/internal/services"

	"github.com/joho/godotenv"
	"github.com/ternarybob/arbor"
)

const appName = "clinic-leads-collector"

func main() {
	var (
		query          = flag.String("query", "", "Search query (default from config, e.g. \"Dentist in Maadi\")")
		configPath     = flag.String("config", "", "Path to configuration file")
		mode           = flag.String("mode", "dev", "Environment mode: 'dev', 'development', 'prod', or 'production'")
		serve          = flag.Bool("serve", false, "Run the HTTP server instead of a single collection")
		quiet          = flag.Bool("quiet", false, "Suppress banner output")
		version        = flag.Bool("version", false, "Show version information")
		help           = flag.Bool("help", false, "Show help message")
		validateConfig = flag.Bool("validate", false, "Validate configuration file and exit")
	)
	flag.StringVar(query, "q", "", "Shorthand for -query")
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s (build: %s)\n", appName, common.GetVersion(), common.GetBuild())
		os.Exit(0)
	}

	if *help {
		showHelp()
		os.Exit(0)
	}

	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	cfg.Collector.Environment = parseMode(*mode)

	if *validateConfig {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	if err := common.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := common.GetLogger()

	logger.Info().
		Str("version", common.GetVersion()).
		Str("build", common.GetBuild()).
		Str("environment", cfg.Collector.Environment).
		Msg("Starting Clinic Leads Collector")

	logger.Info().
		Str("config_path", *configPath).
		Str("driver", cfg.Browser.Driver).
		Str("provider", cfg.Classifier.Provider).
		Msg("Configuration loaded")

	runMode := "Collect"
	if *serve {
		runMode = "Server"
	}
	if !*quiet {
		common.PrintBanner(cfg, runMode, common.GetLogFilePath())
	}

	if cfg.Classifier.APIKey == "" {
		logger.Warn().Str("provider", cfg.Classifier.Provider).Msg("No classifier API key configured, every run will end without leads")
	}

	storage, err := services.NewStorage(&cfg.Storage)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize storage")
		os.Exit(1)
	}
	defer storage.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serve {
		hub := handlers.NewWebSocketHub(logger)
		collector, err := buildCollector(cfg, storage, logger, hub)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize collector")
			os.Exit(1)
		}
		runServerMode(ctx, cfg, collector, storage, hub, logger)
	} else {
		collector, err := buildCollector(cfg, storage, logger, nil)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize collector")
			os.Exit(1)
		}
		if err := runOnce(ctx, collector, *query, logger); err != nil {
			storage.Close()
			os.Exit(1)
		}
	}

	logger.Info().Msg("Clinic Leads Collector shutdown complete")
}

// buildCollector wires the pipeline stages from configuration.
func buildCollector(cfg *common.Config, storage interfaces.Storage, logger arbor.ILogger, observer interfaces.RunObserver) (interfaces.Collector, error) {
	service, err := services.NewClassifierService(&cfg.Classifier, logger)
	if err != nil {
		return nil, err
	}

	extractor := services.NewListingExtractor(
		services.ExtractorConfigFrom(&cfg.Scraper),
		services.NewSessionFactory(&cfg.Browser, logger),
		logger,
		observer,
	)
	classifier := services.NewClinicClassifier(service, logger)
	assembler := services.NewLeadAssembler(
		services.NewPhoneNormalizer(cfg.Phone.Region),
		cfg.Phone.ManualReviewSentinel,
		cfg.Phone.Concurrency,
	)
	writer := services.NewLeadWriter(cfg.Output.Dir, cfg.Output.FilePrefix)

	return services.NewCollector(cfg, extractor, classifier, assembler, writer, storage, logger, observer), nil
}

func runOnce(ctx context.Context, collector interfaces.Collector, query string, logger arbor.ILogger) error {
	run, leads, err := collector.Run(ctx, query)
	if err != nil {
		common.PrintError(fmt.Sprintf("Run failed: %v", err))
		return err
	}

	switch run.Status {
	case models.RunStatusCompleted:
		common.PrintSuccess(fmt.Sprintf("%d leads written to %s", len(leads), run.OutputPath))
	case models.RunStatusClassificationFailed:
		common.PrintWarning(fmt.Sprintf("Classification failed for %d listings, no leads written: %s", run.ListingsExtracted, run.Error))
	default:
		common.PrintWarning(fmt.Sprintf("No leads found for %q (%d listings extracted)", run.Query, run.ListingsExtracted))
	}

	logger.Info().
		Str("run_id", run.ID).
		Str("status", string(run.Status)).
		Msg("Single run complete")
	return nil
}

func runServerMode(ctx context.Context, cfg *common.Config, collector interfaces.Collector, storage interfaces.Storage, hub *handlers.WebSocketHub, logger arbor.ILogger) {
	logger.Info().Msg("Starting in server mode")

	webServer, err := services.NewWebServer(cfg, collector, storage, hub, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create web server")
		return
	}

	if err := webServer.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to start web server")
		return
	}

	logger.Info().
		Int("port", cfg.Collector.Port).
		Msg("Web server started successfully")

	logger.Info().Msg("Server running - press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")

	if err := webServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping web server")
	}

	common.PrintShutdownBanner(appName)
}

func parseMode(mode string) string {
	switch strings.ToLower(mode) {
	case "prod", "production":
		return "production"
	default:
		return "development"
	}
}

func showHelp() {
	fmt.Printf("%s v%s - Clinic lead extraction and classification\n\n", appName, common.GetVersion())
	fmt.Println("Usage:")
	fmt.Printf("  %s [flags]\n\n", os.Args[0])
	fmt.Println("Flags:")
	fmt.Println("  -query, -q string   Search query (default from config)")
	fmt.Println("  -serve              Run the HTTP server instead of a single collection")
	fmt.Println("  -mode string        Environment mode: 'dev', 'development', 'prod', or 'production' (default \"dev\")")
	fmt.Println("  -config string      Configuration file path")
	fmt.Println("  -quiet              Suppress banner output")
	fmt.Println("  -version            Show version information")
	fmt.Println("  -help               Show help message")
	fmt.Println("  -validate           Validate configuration file and exit")
	fmt.Println("\nExamples:")
	fmt.Printf("  %s -q \"Dentist in Maadi\"            # Collect leads once\n", os.Args[0])
	fmt.Printf("  %s -serve -mode prod                # Run server in production mode\n", os.Args[0])
	fmt.Printf("  %s -config /path/to/config.toml     # Use custom config file\n", os.Args[0])
	fmt.Println("\nEnvironment: GEMINI_API_KEY or OPENAI_API_KEY, LOG_LEVEL, MAX_RESULTS, OUTPUT_DIR (a .env file is read if present)")
}
