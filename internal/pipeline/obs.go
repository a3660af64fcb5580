package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
	"github.com/couchcryptid/gauge-data-ingest/internal/store"
)

// RunObs executes one observation ingest pass over every registered source.
// A failure in one source's chain stops that chain but not the others; the
// returned error joins the per-source failures.
func (p *Pipeline) RunObs(ctx context.Context) error {
	logger := p.deps.Logger.With("run_id", uuid.NewString(), "scope", domain.ScopeObs)
	p.deps.Metrics.PipelineRunning.Set(1)
	defer p.deps.Metrics.PipelineRunning.Set(0)

	metas, err := p.deps.Sources.ListSourceMeta(ctx, domain.ScopeObs)
	if err != nil {
		return fmt.Errorf("list observation sources: %w", err)
	}
	if len(metas) == 0 {
		logger.Warn("no observation sources registered, nothing to do")
		return nil
	}
	logger.Info("observation ingest starting", "sources", len(metas))

	var errs []error
	for _, meta := range metas {
		srcLogger := logger.With("data_source", meta.DataSource, "source_archive", meta.SourceArchive)
		if err := p.runObsSource(ctx, srcLogger, meta); err != nil {
			srcLogger.Error("source ingest failed", "error", err)
			errs = append(errs, fmt.Errorf("source %s: %w", meta.DataSource, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	logger.Info("observation ingest complete")
	p.ready.Store(true)
	return nil
}

// runObsSource runs one source's chain: discover, register, then per pending
// file bind, load, and duplicate resolution. Fail fast within the chain.
func (p *Pipeline) runObsSource(ctx context.Context, logger *slog.Logger, meta store.SourceMeta) error {
	sc := domain.LedgerScope{
		Scope:         domain.ScopeObs,
		DataSource:    meta.DataSource,
		SourceName:    meta.SourceName,
		SourceArchive: meta.SourceArchive,
		Variable:      meta.Variable,
	}

	if err := p.discoverAndRegister(ctx, logger, sc, meta.FilenamePrefix, legacyPrefix(meta.FilenamePrefix), "", meta.LocationType); err != nil {
		return err
	}

	pending, err := p.deps.Ledger.PendingFiles(ctx, sc)
	if err != nil {
		return err
	}
	for _, file := range pending {
		if err := p.loadFile(ctx, logger, sc, meta.Variable, file); err != nil {
			return err
		}

		done := p.stageTimer(sc.Scope, "dedupe")
		deleted, err := p.deps.Loader.DeleteDuplicateTimes(ctx, sc, file.DataBeginTime, file.DataEndTime)
		done()
		if err != nil {
			p.stageErr(sc.Scope, "dedupe")
			return err
		}
		if deleted > 0 {
			p.deps.Metrics.DuplicatesDeleted.Add(float64(deleted))
			logger.Info("duplicate times resolved", "file", file.FileName, "deleted", deleted)
		}
	}

	return p.ingestObsStationMeta(ctx, logger, sc, meta)
}

// ingestObsStationMeta registers and loads the source's stationdata_meta
// companion files, retaining a geometry snapshot of the stations each file
// names. Same ledger protocol as data files: register once, load once, flag
// flip makes it re-entrant.
func (p *Pipeline) ingestObsStationMeta(ctx context.Context, logger *slog.Logger, sc domain.LedgerScope, meta store.SourceMeta) error {
	metaPrefix := domain.ObsStationMetaPrefix(meta.FilenamePrefix)
	if metaPrefix == "" {
		return nil
	}
	names, err := p.deps.Discoverer.GlobNames(metaPrefix + "*.csv")
	if err != nil {
		return err
	}
	known, err := p.deps.Stations.RegisteredObsStationFileNames(ctx, sc)
	if err != nil {
		return err
	}

	var files []store.ObsStationFileMeta
	for _, name := range names {
		if known[name] {
			continue
		}
		tokens := domain.ExtractTimestamps(name)
		if len(tokens) == 0 {
			logger.Warn("skipping station meta file", "file", name, "reason", "no_timestamp")
			continue
		}
		files = append(files, store.ObsStationFileMeta{
			DirPath:       p.deps.Discoverer.HarvestDir(),
			FileName:      name,
			DataDateTime:  tokens[0],
			DataSource:    sc.DataSource,
			SourceName:    sc.SourceName,
			SourceArchive: sc.SourceArchive,
			LocationType:  meta.LocationType,
			Timemark:      tokens[0],
		})
	}
	if len(files) > 0 {
		if err := p.deps.Stations.RegisterObsStationFiles(ctx, files); err != nil {
			return err
		}
		logger.Info("station meta files registered", "files", len(files))
	}

	pending, err := p.deps.Stations.PendingObsStationFiles(ctx, sc)
	if err != nil {
		return err
	}
	for _, pf := range pending {
		rows, err := p.deps.Stations.LoadObsStationFile(ctx, pf)
		if err != nil {
			p.stageErr(sc.Scope, "load")
			return err
		}
		logger.Info("station meta file loaded", "file", pf.FileName, "stations", rows)
	}
	return nil
}

// discoverAndRegister is the ledger append sequence shared by both scopes,
// guarded by the scope's advisory lock so concurrent runs cannot
// double-register a file.
func (p *Pipeline) discoverAndRegister(ctx context.Context, logger *slog.Logger, sc domain.LedgerScope, prefix, legacy, timemark, locationType string) error {
	release, err := p.deps.Locker.AcquireScopeLock(ctx, sc.Scope)
	if err != nil {
		return err
	}
	defer release()

	done := p.stageTimer(sc.Scope, "discover")
	known, err := p.knownFiles(ctx, sc)
	if err != nil {
		done()
		p.stageErr(sc.Scope, "discover")
		return err
	}
	candidates, err := p.deps.Discoverer.Discover(sc, prefix, legacy, timemark, known)
	done()
	if err != nil {
		p.stageErr(sc.Scope, "discover")
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	// Legacy reconciliation sees a registered-but-unloaded file as new, but
	// the ledger is append only, so such a name must never reach
	// RegisterFiles. The pending queue still carries it to the load stage.
	if !p.deps.LedgerStrict {
		registered, err := p.deps.Ledger.RegisteredFileNames(ctx, sc)
		if err != nil {
			p.stageErr(sc.Scope, "register")
			return err
		}
		candidates = slices.DeleteFunc(candidates, func(f domain.HarvestFile) bool {
			return registered[f.FileName]
		})
		if len(candidates) == 0 {
			return nil
		}
	}

	for i := range candidates {
		candidates[i].SourceVariable = sc.Variable
		candidates[i].LocationType = locationType
	}

	done = p.stageTimer(sc.Scope, "register")
	err = p.deps.Ledger.RegisterFiles(ctx, sc, candidates)
	done()
	if err != nil {
		p.stageErr(sc.Scope, "register")
		return err
	}
	p.deps.Metrics.FilesRegistered.WithLabelValues(string(sc.Scope)).Add(float64(len(candidates)))
	logger.Info("harvest files registered",
		"files", len(candidates),
		"first", candidates[0].DataDateTime,
		"last", candidates[len(candidates)-1].DataDateTime)
	return nil
}

// loadFile binds and loads one pending harvest file, removing the artifact
// once the load has committed.
func (p *Pipeline) loadFile(ctx context.Context, logger *slog.Logger, sc domain.LedgerScope, variable string, file domain.HarvestFile) error {
	done := p.stageTimer(sc.Scope, "bind")
	artifactPath, err := p.deps.Binder.Bind(ctx, sc, file)
	done()
	if err != nil {
		p.stageErr(sc.Scope, "bind")
		return err
	}

	done = p.stageTimer(sc.Scope, "load")
	rows, err := p.deps.Loader.LoadDataFile(ctx, sc.Scope, variable, artifactPath, file.FileName)
	done()
	if err != nil {
		p.stageErr(sc.Scope, "load")
		return err
	}
	if err := os.Remove(artifactPath); err != nil {
		logger.Warn("could not remove ingest artifact", "artifact", artifactPath, "error", err)
	}

	p.deps.Metrics.FilesLoaded.WithLabelValues(string(sc.Scope)).Inc()
	p.deps.Metrics.RowsLoaded.WithLabelValues(string(sc.Scope)).Add(float64(rows))
	logger.Info("harvest file loaded", "file", file.FileName, "rows", rows)
	return nil
}

// legacyPrefix maps a canonical filename prefix to the naming used before the
// stationdata segment was introduced. Sources whose prefix predates the
// rename keep matching their old drops.
func legacyPrefix(prefix string) string {
	legacy := strings.Replace(prefix, "_stationdata", "", 1)
	if legacy == prefix {
		return ""
	}
	return legacy
}
