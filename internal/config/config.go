package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// DatabaseURL is the warehouse DSN (pgx pool). RunConfigURL points at the
	// external run-configuration database model runs are resolved from; it
	// may equal DatabaseURL in single-database deployments.
	DatabaseURL  string
	RunConfigURL string

	// HarvestDir is where collectors drop CSVs; IngestDir receives the
	// enriched intermediate artifacts between bind and load.
	HarvestDir string
	IngestDir  string

	HTTPAddr        string
	LogLevel        string
	LogDir          string
	ShutdownTimeout time.Duration

	// LedgerStrict widens new-file reconciliation from ingested rows to all
	// registered rows, so a registered-but-unloaded file is never
	// re-registered by a concurrent discovery pass.
	LedgerStrict bool

	// Cron schedule for the recurring observation pipeline run.
	ObsSchedule string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is folded in first when
// present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RunConfigURL:    envOrDefault("RUNCONFIG_URL", os.Getenv("DATABASE_URL")),
		HarvestDir:      envOrDefault("HARVEST_DIR", "/data/harvest"),
		IngestDir:       envOrDefault("INGEST_DIR", "/data/ingest"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogDir:          envOrDefault("LOG_DIR", "logs"),
		ShutdownTimeout: shutdownTimeout,
		LedgerStrict:    parseBool("LEDGER_STRICT", false),
		ObsSchedule:     envOrDefault("OBS_SCHEDULE", "@hourly"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.HarvestDir == "" {
		return nil, errors.New("HARVEST_DIR is required")
	}
	if cfg.IngestDir == "" {
		return nil, errors.New("INGEST_DIR is required")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
