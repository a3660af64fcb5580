// Package cli provides the gauge-ingest command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/gauge-data-ingest/internal/config"
	"github.com/couchcryptid/gauge-data-ingest/internal/enrich"
	"github.com/couchcryptid/gauge-data-ingest/internal/harvest"
	"github.com/couchcryptid/gauge-data-ingest/internal/observability"
	"github.com/couchcryptid/gauge-data-ingest/internal/pipeline"
	"github.com/couchcryptid/gauge-data-ingest/internal/runconfig"
	"github.com/couchcryptid/gauge-data-ingest/internal/store"
)

// Version is set at build time.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "gauge-ingest",
	Short: "Gauge and model time-series ingest pipeline",
	Long: `gauge-ingest reconciles harvested gauge and model CSV files against a
known-file ledger and loads new data into the warehouse.

Observation runs scan for station-data files from registered sources;
model runs resolve an ADCIRC model run ID to its forecast and nowcast
sources and ingest their files plus station metadata.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command under a signal-aware context. SIGINT and
// SIGTERM cancel the context so in-flight database work unwinds cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(obsCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(initSchemaCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(stationsCmd)
}

// app holds the wired service graph shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func()
	metrics  *observability.Metrics
	store    *store.Store
	runCfg   *runconfig.Client
	pipeline *pipeline.Pipeline
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, closeLog, err := observability.SetupLogger(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	metrics := observability.NewMetrics()

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}

	runCfg, err := runconfig.New(ctx, cfg.RunConfigURL)
	if err != nil {
		st.Close()
		closeLog()
		return nil, fmt.Errorf("connect run-config database: %w", err)
	}

	discoverer := harvest.NewDiscoverer(cfg.HarvestDir, logger, metrics)
	binder := enrich.NewBinder(cfg.IngestDir, st, logger)

	p := pipeline.New(pipeline.Deps{
		Ledger:       st,
		Sources:      st,
		Loader:       st,
		Stations:     st,
		Locker:       st,
		Discoverer:   discoverer,
		Binder:       binder,
		RunConfig:    runCfg,
		LedgerStrict: cfg.LedgerStrict,
		Logger:       logger,
		Metrics:      metrics,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		metrics:  metrics,
		store:    st,
		runCfg:   runCfg,
		pipeline: p,
	}, nil
}

func (a *app) close() {
	a.runCfg.Close()
	a.store.Close()
	a.closeLog()
}
