package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/gauge-data-ingest/internal/adapter/http"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the observation pipeline on a recurring schedule",
	Long: `Run the observation pipeline as a long-lived service. An ingest pass
fires immediately and again on every tick of OBS_SCHEDULE; the HTTP
endpoints (healthz, readyz, status, metrics) are served for the
lifetime of the process. SIGINT or SIGTERM stop the scheduler and shut
the server down within SHUTDOWN_TIMEOUT; an interrupted pass resumes
from the ledger on the next start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.pipeline, a.store, a.logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", "error", err)
			}
		}()

		runObs := func() {
			if err := a.pipeline.RunObs(ctx); err != nil {
				a.logger.Error("observation run failed", "error", err)
			}
		}

		sched := cron.New()
		if _, err := sched.AddFunc(a.cfg.ObsSchedule, runObs); err != nil {
			return fmt.Errorf("parse schedule %q: %w", a.cfg.ObsSchedule, err)
		}

		a.logger.Info("scheduler started", "schedule", a.cfg.ObsSchedule, "http_addr", a.cfg.HTTPAddr)
		runObs()
		sched.Start()

		<-ctx.Done()
		a.logger.Info("shutting down")

		// Stop's context completes when any in-flight entry returns.
		stopCtx := sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", "error", err)
		}

		select {
		case <-stopCtx.Done():
		case <-shutdownCtx.Done():
			a.logger.Warn("shutdown timeout elapsed with an ingest pass still running")
		}

		a.logger.Info("shutdown complete")
		return nil
	},
}
