// Package pipeline orchestrates ingest runs: discover harvest files,
// reconcile them against the known-file ledger, bind stations to sources,
// and load the enriched artifacts into the warehouse.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
	"github.com/couchcryptid/gauge-data-ingest/internal/observability"
	"github.com/couchcryptid/gauge-data-ingest/internal/store"
)

// The orchestrator talks to its collaborators through narrow interfaces so
// tests can substitute mocks for the store, the filesystem, and the
// run-configuration database.

// Ledger is the known-file ledger surface.
type Ledger interface {
	IngestedFileNames(ctx context.Context, sc domain.LedgerScope) (map[string]bool, error)
	RegisteredFileNames(ctx context.Context, sc domain.LedgerScope) (map[string]bool, error)
	RegisterFiles(ctx context.Context, sc domain.LedgerScope, files []domain.HarvestFile) error
	PendingFiles(ctx context.Context, sc domain.LedgerScope) ([]domain.HarvestFile, error)
}

// SourceCatalog registers and enumerates measurement sources.
type SourceCatalog interface {
	ListSourceMeta(ctx context.Context, scope domain.Scope) ([]store.SourceMeta, error)
	SourceExists(ctx context.Context, scope domain.Scope, prefix, instance string) (bool, error)
	RegisterSource(ctx context.Context, meta store.SourceMeta) error
}

// DataLoader moves enriched artifacts into the data tables and resolves
// duplicate times afterwards.
type DataLoader interface {
	LoadDataFile(ctx context.Context, scope domain.Scope, variable, artifactPath, fileName string) (int64, error)
	DeleteDuplicateTimes(ctx context.Context, sc domain.LedgerScope, minTime, maxTime string) (int64, error)
}

// StationMetaLedger tracks and loads station-metadata files: per-run files
// for the model scope, per-source stationdata_meta files for observations.
type StationMetaLedger interface {
	RegisteredStationFileNames(ctx context.Context, modelRunID string) (map[string]bool, error)
	RegisterStationFiles(ctx context.Context, files []store.StationFileMeta) error
	PendingStationFiles(ctx context.Context, modelRunID string) ([]store.StationFileMeta, error)
	LoadStationFile(ctx context.Context, meta store.StationFileMeta) (int64, error)

	RegisteredObsStationFileNames(ctx context.Context, sc domain.LedgerScope) (map[string]bool, error)
	RegisterObsStationFiles(ctx context.Context, files []store.ObsStationFileMeta) error
	PendingObsStationFiles(ctx context.Context, sc domain.LedgerScope) ([]store.ObsStationFileMeta, error)
	LoadObsStationFile(ctx context.Context, meta store.ObsStationFileMeta) (int64, error)
}

// ScopeLocker serializes concurrent discover-and-register passes per scope.
type ScopeLocker interface {
	AcquireScopeLock(ctx context.Context, scope domain.Scope) (release func(), err error)
}

// FileDiscoverer finds harvest files on disk.
type FileDiscoverer interface {
	Discover(sc domain.LedgerScope, prefix, legacyPrefix, timemark string, known map[string]bool) ([]domain.HarvestFile, error)
	GlobNames(pattern string) ([]string, error)
	HarvestDir() string
}

// RowBinder produces the enriched artifact for one harvest file.
type RowBinder interface {
	Bind(ctx context.Context, sc domain.LedgerScope, file domain.HarvestFile) (string, error)
}

// RunConfigSource resolves model run IDs to run properties.
type RunConfigSource interface {
	RunProperties(ctx context.Context, modelRunID string) (domain.RunProperties, error)
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Ledger     Ledger
	Sources    SourceCatalog
	Loader     DataLoader
	Stations   StationMetaLedger
	Locker     ScopeLocker
	Discoverer FileDiscoverer
	Binder     RowBinder
	RunConfig  RunConfigSource

	// LedgerStrict reconciles discovery against all registered files rather
	// than only ingested ones.
	LedgerStrict bool

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Pipeline runs the observation and model ingest flows. Both are re-entrant:
// every completed step is detectable in the ledger, so a crashed run resumes
// where it stopped.
type Pipeline struct {
	deps  Deps
	ready atomic.Bool
}

func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// CheckReadiness returns nil once at least one ingest run has completed
// without error.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no ingest run has completed yet")
	}
	return nil
}

// knownFiles returns the reconciliation set for a scope per the strict flag.
func (p *Pipeline) knownFiles(ctx context.Context, sc domain.LedgerScope) (map[string]bool, error) {
	if p.deps.LedgerStrict {
		return p.deps.Ledger.RegisteredFileNames(ctx, sc)
	}
	return p.deps.Ledger.IngestedFileNames(ctx, sc)
}

// stageTimer observes one stage's duration on completion.
func (p *Pipeline) stageTimer(scope domain.Scope, stage string) func() {
	start := domain.Now()
	return func() {
		p.deps.Metrics.StageDuration.WithLabelValues(string(scope), stage).
			Observe(domain.Now().Sub(start).Seconds())
	}
}

func (p *Pipeline) stageErr(scope domain.Scope, stage string) {
	p.deps.Metrics.PipelineErrors.WithLabelValues(string(scope), stage).Inc()
}
