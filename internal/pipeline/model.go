package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
	"github.com/couchcryptid/gauge-data-ingest/internal/store"
)

// RunModel executes one model ingest pass for a single model run. Unlike the
// observation pass there is no cross-source isolation: the run is one
// configuration, so the first failure aborts it and a re-invocation resumes
// from the ledger.
func (p *Pipeline) RunModel(ctx context.Context, modelRunID string) error {
	logger := p.deps.Logger.With("run_id", uuid.NewString(), "scope", domain.ScopeModel, "model_run_id", modelRunID)
	p.deps.Metrics.PipelineRunning.Set(1)
	defer p.deps.Metrics.PipelineRunning.Set(0)

	props, err := p.deps.RunConfig.RunProperties(ctx, modelRunID)
	if err != nil {
		return fmt.Errorf("resolve run: %w", err)
	}
	timemark, err := props.Timemark()
	if err != nil {
		return fmt.Errorf("resolve run: %w", err)
	}
	logger.Info("model ingest starting",
		"metclass", props.Metclass, "grid", props.GridName, "timemark", timemark)

	names, err := p.deps.Discoverer.GlobNames(props.HarvestGlob())
	if err != nil {
		return err
	}
	if len(names) == 0 {
		logger.Warn("no harvest files for run", "glob", props.HarvestGlob())
		return nil
	}

	for _, stationType := range stationTypes(names) {
		class, err := domain.ClassifyModelStations(stationType)
		if err != nil {
			// Unknown station types mean the run configuration is wrong;
			// loading anything would mislabel rows.
			return err
		}
		forecast, nowcast := props.Sources(stationType)

		for _, rs := range []domain.RunSource{forecast, nowcast} {
			if err := p.runModelSource(ctx, logger, props, rs, class, timemark); err != nil {
				return fmt.Errorf("source %s: %w", rs.DataSource, err)
			}
		}
		if err := p.ingestStationMeta(ctx, logger, props, forecast, class, timemark); err != nil {
			return fmt.Errorf("station meta %s: %w", forecast.DataSource, err)
		}
	}

	logger.Info("model ingest complete")
	p.ready.Store(true)
	return nil
}

// stationTypes extracts the distinct station-type tokens from a run's harvest
// file names, sorted for a stable processing order. Files whose name cannot
// carry a token are ignored here and surface later as discovery skips.
func stationTypes(names []string) []string {
	seen := make(map[string]bool)
	var types []string
	for _, name := range names {
		st, err := domain.StationTypeFromFile(name)
		if err != nil || seen[st] {
			continue
		}
		seen[st] = true
		types = append(types, st)
	}
	sort.Strings(types)
	return types
}

// runModelSource ensures the run source is registered, then discovers,
// registers, binds, and loads its harvest files.
func (p *Pipeline) runModelSource(ctx context.Context, logger *slog.Logger, props domain.RunProperties, rs domain.RunSource, class domain.StationClass, timemark string) error {
	exists, err := p.deps.Sources.SourceExists(ctx, domain.ScopeModel, rs.Prefix, props.Instance)
	if err != nil {
		return err
	}
	if !exists {
		err := p.deps.Sources.RegisterSource(ctx, store.SourceMeta{
			Scope:          domain.ScopeModel,
			DataSource:     rs.DataSource,
			SourceName:     props.SourceName,
			SourceArchive:  props.SourceArchive,
			SourceInstance: props.Instance,
			Metclass:       props.Metclass,
			Variable:       class.Variable,
			FilenamePrefix: rs.Prefix,
			LocationType:   class.Location,
			Units:          class.Units,
		})
		if err != nil {
			return err
		}
		p.deps.Metrics.SourcesRegistered.Inc()
		logger.Info("model source registered", "data_source", rs.DataSource, "prefix", rs.Prefix)
	}

	sc := domain.LedgerScope{
		Scope:         domain.ScopeModel,
		DataSource:    rs.DataSource,
		SourceName:    props.SourceName,
		SourceArchive: props.SourceArchive,
		Instance:      props.Instance,
	}
	if err := p.discoverAndRegister(ctx, logger, sc, rs.Prefix, "", timemark, class.Location); err != nil {
		return err
	}

	pending, err := p.deps.Ledger.PendingFiles(ctx, sc)
	if err != nil {
		return err
	}
	for _, file := range pending {
		if err := p.loadFile(ctx, logger, sc, class.Variable, file); err != nil {
			return err
		}
	}
	return nil
}

// ingestStationMeta registers and loads the run's station-metadata files for
// one forecast source. Same ledger protocol as data files: register once, load
// once, flag flip makes it re-entrant.
func (p *Pipeline) ingestStationMeta(ctx context.Context, logger *slog.Logger, props domain.RunProperties, forecast domain.RunSource, class domain.StationClass, timemark string) error {
	metaPrefix := domain.StationMetaPrefix(forecast.Prefix)
	names, err := p.deps.Discoverer.GlobNames(metaPrefix + "*.csv")
	if err != nil {
		return err
	}
	known, err := p.deps.Stations.RegisteredStationFileNames(ctx, props.ModelRunID)
	if err != nil {
		return err
	}

	var files []store.StationFileMeta
	for _, name := range names {
		if known[name] {
			continue
		}
		dataDate := timemark
		if tokens := domain.ExtractTimestamps(name); len(tokens) > 0 {
			dataDate = tokens[0]
		}
		files = append(files, store.StationFileMeta{
			DirPath:        p.deps.Discoverer.HarvestDir(),
			FileName:       name,
			DataDateTime:   dataDate,
			DataSource:     forecast.DataSource,
			SourceName:     props.SourceName,
			SourceArchive:  props.SourceArchive,
			SourceInstance: props.Instance,
			Timemark:       timemark,
			LocationType:   class.Location,
			ModelRunID:     props.ModelRunID,
		})
	}
	if len(files) > 0 {
		if err := p.deps.Stations.RegisterStationFiles(ctx, files); err != nil {
			return err
		}
		logger.Info("station meta files registered", "files", len(files))
	}

	pending, err := p.deps.Stations.PendingStationFiles(ctx, props.ModelRunID)
	if err != nil {
		return err
	}
	for _, meta := range pending {
		rows, err := p.deps.Stations.LoadStationFile(ctx, meta)
		if err != nil {
			p.stageErr(domain.ScopeModel, "load")
			return err
		}
		logger.Info("station meta file loaded", "file", meta.FileName, "stations", rows)
	}
	return nil
}
