package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"fundscraper/pkg/config"
	"fundscraper/pkg/eastmoney"
	"fundscraper/pkg/logger"
	"fundscraper/pkg/models"
	"fundscraper/pkg/ratelimit"
	"fundscraper/pkg/scraper"
	"fundscraper/pkg/storage"
)

var (
	// Version information, set at build time.
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fundscraper",
	Short: "Collect open-fund data from public sources",
	Long: `fundscraper collects fund data from public sources and stores it in a
local SQLite database: raw payloads for replay, structured rank rows,
and the fund/company reference catalogs.

Sources are rate limited per origin, pages are fetched concurrently,
and every collection run is recorded as a task that can be inspected
later.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .fundscraper.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`fundscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// setup loads config, wires the storage, sources, and service. The
// returned store must be closed by the caller.
func setup() (*scraper.Service, *storage.Store, *config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	store, err := storage.Open(cfg.Storage.Path, log)
	if err != nil {
		return nil, nil, nil, err
	}

	service, err := scraper.NewService(scraper.NewRegistry(), store, nil, cfg, log)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	limiters := ratelimit.NewPerSource(cfg.RateLimit.MinInterval)
	source := eastmoney.NewSource(cfg, limiters.Limiter(string(models.SourceEastmoney)), log)
	if err := service.Registry().Register(source.ID(), source); err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	return service, store, cfg, nil
}
