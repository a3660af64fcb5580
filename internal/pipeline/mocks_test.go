package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
	"github.com/couchcryptid/gauge-data-ingest/internal/store"
)

// fakeStore is an in-memory stand-in for the warehouse store. It keeps the
// real ledger semantics (append-only registration, ingested flag flips on
// load) so the orchestrator's re-entrancy is actually exercised.
type fakeStore struct {
	files     map[string]*domain.HarvestFile
	fileOrder []string

	sourceMetas       []store.SourceMeta
	registeredSources []store.SourceMeta

	stationFiles     map[string]*store.StationFileMeta
	stationFileOrder []string

	obsStationFiles     map[string]*store.ObsStationFileMeta
	obsStationFileOrder []string
	obsStationLoads     []string

	runProps map[string]domain.RunProperties

	loads        []string
	stationLoads []string
	dedupes      []string

	lockBalance int
	lockCount   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		files:           make(map[string]*domain.HarvestFile),
		stationFiles:    make(map[string]*store.StationFileMeta),
		obsStationFiles: make(map[string]*store.ObsStationFileMeta),
		runProps:        make(map[string]domain.RunProperties),
	}
}

func (f *fakeStore) IngestedFileNames(_ context.Context, sc domain.LedgerScope) (map[string]bool, error) {
	names := make(map[string]bool)
	for name, file := range f.files {
		if file.DataSource == sc.DataSource && file.Ingested {
			names[name] = true
		}
	}
	return names, nil
}

func (f *fakeStore) RegisteredFileNames(_ context.Context, sc domain.LedgerScope) (map[string]bool, error) {
	names := make(map[string]bool)
	for name, file := range f.files {
		if file.DataSource == sc.DataSource {
			names[name] = true
		}
	}
	return names, nil
}

func (f *fakeStore) RegisterFiles(_ context.Context, _ domain.LedgerScope, files []domain.HarvestFile) error {
	for _, file := range files {
		if _, dup := f.files[file.FileName]; dup {
			return fmt.Errorf("duplicate file name %s", file.FileName)
		}
		file := file
		f.files[file.FileName] = &file
		f.fileOrder = append(f.fileOrder, file.FileName)
	}
	return nil
}

func (f *fakeStore) PendingFiles(_ context.Context, sc domain.LedgerScope) ([]domain.HarvestFile, error) {
	var pending []domain.HarvestFile
	for _, name := range f.fileOrder {
		file := f.files[name]
		if file.DataSource == sc.DataSource && !file.Ingested {
			pending = append(pending, *file)
		}
	}
	return pending, nil
}

func (f *fakeStore) ListSourceMeta(_ context.Context, scope domain.Scope) ([]store.SourceMeta, error) {
	var metas []store.SourceMeta
	for _, m := range f.sourceMetas {
		if m.Scope == scope {
			metas = append(metas, m)
		}
	}
	return metas, nil
}

func (f *fakeStore) SourceExists(_ context.Context, _ domain.Scope, prefix, instance string) (bool, error) {
	for _, m := range f.registeredSources {
		if m.FilenamePrefix == prefix && m.SourceInstance == instance {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) RegisterSource(_ context.Context, meta store.SourceMeta) error {
	f.registeredSources = append(f.registeredSources, meta)
	return nil
}

func (f *fakeStore) LoadDataFile(_ context.Context, _ domain.Scope, _, artifactPath, fileName string) (int64, error) {
	file, ok := f.files[fileName]
	if !ok {
		return 0, fmt.Errorf("load %s: %w", fileName, domain.ErrNotFound)
	}
	body, err := os.ReadFile(artifactPath)
	if err != nil {
		return 0, err
	}
	file.Ingested = true
	f.loads = append(f.loads, fileName)
	return int64(strings.Count(string(body), "\n")), nil
}

func (f *fakeStore) DeleteDuplicateTimes(_ context.Context, sc domain.LedgerScope, minTime, maxTime string) (int64, error) {
	f.dedupes = append(f.dedupes, sc.DataSource+"|"+minTime+"|"+maxTime)
	return 0, nil
}

func (f *fakeStore) RegisteredStationFileNames(_ context.Context, modelRunID string) (map[string]bool, error) {
	names := make(map[string]bool)
	for name, meta := range f.stationFiles {
		if meta.ModelRunID == modelRunID {
			names[name] = true
		}
	}
	return names, nil
}

func (f *fakeStore) RegisterStationFiles(_ context.Context, files []store.StationFileMeta) error {
	for _, file := range files {
		if _, dup := f.stationFiles[file.FileName]; dup {
			return fmt.Errorf("duplicate station file %s", file.FileName)
		}
		file := file
		f.stationFiles[file.FileName] = &file
		f.stationFileOrder = append(f.stationFileOrder, file.FileName)
	}
	return nil
}

func (f *fakeStore) PendingStationFiles(_ context.Context, modelRunID string) ([]store.StationFileMeta, error) {
	var pending []store.StationFileMeta
	for _, name := range f.stationFileOrder {
		meta := f.stationFiles[name]
		if meta.ModelRunID == modelRunID && !meta.Ingested {
			pending = append(pending, *meta)
		}
	}
	return pending, nil
}

func (f *fakeStore) LoadStationFile(_ context.Context, meta store.StationFileMeta) (int64, error) {
	f.stationFiles[meta.FileName].Ingested = true
	f.stationLoads = append(f.stationLoads, meta.FileName)
	return 1, nil
}

func (f *fakeStore) RegisteredObsStationFileNames(_ context.Context, sc domain.LedgerScope) (map[string]bool, error) {
	names := make(map[string]bool)
	for name, meta := range f.obsStationFiles {
		if meta.DataSource == sc.DataSource {
			names[name] = true
		}
	}
	return names, nil
}

func (f *fakeStore) RegisterObsStationFiles(_ context.Context, files []store.ObsStationFileMeta) error {
	for _, file := range files {
		if _, dup := f.obsStationFiles[file.FileName]; dup {
			return fmt.Errorf("duplicate obs station file %s", file.FileName)
		}
		file := file
		f.obsStationFiles[file.FileName] = &file
		f.obsStationFileOrder = append(f.obsStationFileOrder, file.FileName)
	}
	return nil
}

func (f *fakeStore) PendingObsStationFiles(_ context.Context, sc domain.LedgerScope) ([]store.ObsStationFileMeta, error) {
	var pending []store.ObsStationFileMeta
	for _, name := range f.obsStationFileOrder {
		meta := f.obsStationFiles[name]
		if meta.DataSource == sc.DataSource && !meta.Ingested {
			pending = append(pending, *meta)
		}
	}
	return pending, nil
}

func (f *fakeStore) LoadObsStationFile(_ context.Context, meta store.ObsStationFileMeta) (int64, error) {
	f.obsStationFiles[meta.FileName].Ingested = true
	f.obsStationLoads = append(f.obsStationLoads, meta.FileName)
	return 1, nil
}

func (f *fakeStore) AcquireScopeLock(_ context.Context, _ domain.Scope) (func(), error) {
	f.lockBalance++
	f.lockCount++
	return func() { f.lockBalance-- }, nil
}

func (f *fakeStore) RunProperties(_ context.Context, modelRunID string) (domain.RunProperties, error) {
	props, ok := f.runProps[modelRunID]
	if !ok {
		return domain.RunProperties{}, fmt.Errorf("run %s: %w", modelRunID, domain.ErrNotFound)
	}
	return props, nil
}

// fixedLookup resolves every station to a fixed source ID.
type fixedLookup struct{}

func (fixedLookup) SourceIDsByStation(_ context.Context, _ domain.LedgerScope, stations []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(stations))
	for i, st := range stations {
		ids[st] = int64(i + 1)
	}
	return ids, nil
}
