package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
	"github.com/couchcryptid/gauge-data-ingest/internal/enrich"
	"github.com/couchcryptid/gauge-data-ingest/internal/harvest"
	"github.com/couchcryptid/gauge-data-ingest/internal/observability"
	"github.com/couchcryptid/gauge-data-ingest/internal/store"
)

type testEnv struct {
	pipeline   *Pipeline
	store      *fakeStore
	harvestDir string
	ingestDir  string
}

func newTestEnv(t *testing.T, strict bool) *testEnv {
	t.Helper()
	fs := newFakeStore()
	harvestDir := t.TempDir()
	ingestDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	p := New(Deps{
		Ledger:       fs,
		Sources:      fs,
		Loader:       fs,
		Stations:     fs,
		Locker:       fs,
		Discoverer:   harvest.NewDiscoverer(harvestDir, logger, metrics),
		Binder:       enrich.NewBinder(ingestDir, fixedLookup{}, logger),
		RunConfig:    fs,
		LedgerStrict: strict,
		Logger:       logger,
		Metrics:      metrics,
	})
	return &testEnv{pipeline: p, store: fs, harvestDir: harvestDir, ingestDir: ingestDir}
}

func (e *testEnv) writeHarvestFile(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.harvestDir, name), []byte(body), 0o644))
}

var gaugeMeta = store.SourceMeta{
	Scope:          domain.ScopeObs,
	DataSource:     "tidal_gauge",
	SourceName:     "noaa",
	SourceArchive:  "noaa",
	Variable:       "water_level",
	FilenamePrefix: "noaa_stationdata_gauge",
	LocationType:   "tidal",
	Units:          "m",
}

func TestRunObs_EndToEnd(t *testing.T) {
	env := newTestEnv(t, false)
	env.store.sourceMetas = []store.SourceMeta{gaugeMeta}
	env.writeHarvestFile(t, "noaa_stationdata_gauge_2024-01-01T00:00:00.csv",
		"TIME,STATION,WATER_LEVEL\n"+
			"2024-01-01T00:00:00,8651370,1.1\n"+
			"2024-01-01T01:00:00,8651370,1.2\n")

	require.NoError(t, env.pipeline.RunObs(context.Background()))

	file := env.store.files["noaa_stationdata_gauge_2024-01-01T00:00:00.csv"]
	require.NotNil(t, file, "file must be registered in the ledger")
	assert.True(t, file.Ingested)
	assert.Equal(t, []string{"noaa_stationdata_gauge_2024-01-01T00:00:00.csv"}, env.store.loads)

	assert.Equal(t, []string{"tidal_gauge|2024-01-01T00:00:00|2024-01-01T01:00:00"}, env.store.dedupes,
		"duplicate resolution runs with the file's time window")

	artifacts, err := filepath.Glob(filepath.Join(env.ingestDir, "data_copy_*"))
	require.NoError(t, err)
	assert.Empty(t, artifacts, "artifact is deleted after a committed load")

	assert.Zero(t, env.store.lockBalance, "scope lock must be released")
	assert.NoError(t, env.pipeline.CheckReadiness(context.Background()))
}

func TestRunObs_Reentrant(t *testing.T) {
	env := newTestEnv(t, false)
	env.store.sourceMetas = []store.SourceMeta{gaugeMeta}
	env.writeHarvestFile(t, "noaa_stationdata_gauge_2024-01-01T00:00:00.csv",
		"TIME,STATION,WATER_LEVEL\n2024-01-01T00:00:00,8651370,1.1\n")

	require.NoError(t, env.pipeline.RunObs(context.Background()))
	require.NoError(t, env.pipeline.RunObs(context.Background()))

	assert.Len(t, env.store.loads, 1, "ingested files are never loaded twice")
	assert.Len(t, env.store.fileOrder, 1, "ingested files are never re-registered")
}

func TestRunObs_EmptyFileAutoIngested(t *testing.T) {
	env := newTestEnv(t, false)
	env.store.sourceMetas = []store.SourceMeta{gaugeMeta}
	env.writeHarvestFile(t, "noaa_stationdata_gauge_2024-01-01T00:00:00.csv", "TIME,STATION,WATER_LEVEL\n")

	require.NoError(t, env.pipeline.RunObs(context.Background()))

	file := env.store.files["noaa_stationdata_gauge_2024-01-01T00:00:00.csv"]
	require.NotNil(t, file)
	assert.True(t, file.Ingested)
	assert.Empty(t, env.store.loads, "nothing to load for an empty body")
}

func TestRunObs_SourceIsolation(t *testing.T) {
	env := newTestEnv(t, false)
	buoyMeta := store.SourceMeta{
		Scope:          domain.ScopeObs,
		DataSource:     "ocean_buoy",
		SourceName:     "ndbc",
		SourceArchive:  "ndbc",
		Variable:       "wave_height",
		FilenamePrefix: "ndbc_stationdata_buoy",
		LocationType:   "ocean",
		Units:          "m",
	}
	env.store.sourceMetas = []store.SourceMeta{gaugeMeta, buoyMeta}

	// The gauge file passes discovery but fails binding: no STATION column.
	env.writeHarvestFile(t, "noaa_stationdata_gauge_2024-01-01T00:00:00.csv",
		"TIME,WATER_LEVEL\n2024-01-01T00:00:00,1.1\n")
	env.writeHarvestFile(t, "ndbc_stationdata_buoy_2024-01-01T00:00:00.csv",
		"TIME,STATION,WAVE_HEIGHT\n2024-01-01T00:00:00,41025,2.0\n")

	err := env.pipeline.RunObs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tidal_gauge")

	assert.Equal(t, []string{"ndbc_stationdata_buoy_2024-01-01T00:00:00.csv"}, env.store.loads,
		"one source's failure must not stop the others")
}

func TestRunObs_StrictLedgerSkipsRegisteredUnloadedFiles(t *testing.T) {
	env := newTestEnv(t, true)
	env.store.sourceMetas = []store.SourceMeta{gaugeMeta}
	env.writeHarvestFile(t, "noaa_stationdata_gauge_2024-01-01T00:00:00.csv",
		"TIME,STATION,WATER_LEVEL\n2024-01-01T00:00:00,8651370,1.1\n")

	// A previous run registered the file and died before loading it.
	require.NoError(t, env.store.RegisterFiles(context.Background(), domain.LedgerScope{}, []domain.HarvestFile{{
		FileName:      "noaa_stationdata_gauge_2024-01-01T00:00:00.csv",
		DirPath:       env.harvestDir,
		DataDateTime:  "2024-01-01T00:00:00",
		DataBeginTime: "2024-01-01T00:00:00",
		DataEndTime:   "2024-01-01T00:00:00",
		DataSource:    "tidal_gauge",
		SourceName:    "noaa",
		SourceArchive: "noaa",
	}}))

	require.NoError(t, env.pipeline.RunObs(context.Background()))

	assert.Len(t, env.store.fileOrder, 1, "strict mode never re-registers a known name")
	assert.Equal(t, []string{"noaa_stationdata_gauge_2024-01-01T00:00:00.csv"}, env.store.loads,
		"the stranded file is still picked up from the pending queue")
}

func TestRunObs_LegacyLedgerResumesRegisteredPendingFile(t *testing.T) {
	env := newTestEnv(t, false)
	env.store.sourceMetas = []store.SourceMeta{gaugeMeta}
	env.writeHarvestFile(t, "noaa_stationdata_gauge_2024-01-01T00:00:00.csv",
		"TIME,STATION,WATER_LEVEL\n2024-01-01T00:00:00,8651370,1.1\n")

	// A previous run registered the file and died before loading it. Legacy
	// reconciliation still sees it as undiscovered, but the append-only
	// ledger must not be asked to take the name again.
	require.NoError(t, env.store.RegisterFiles(context.Background(), domain.LedgerScope{}, []domain.HarvestFile{{
		FileName:      "noaa_stationdata_gauge_2024-01-01T00:00:00.csv",
		DirPath:       env.harvestDir,
		DataDateTime:  "2024-01-01T00:00:00",
		DataBeginTime: "2024-01-01T00:00:00",
		DataEndTime:   "2024-01-01T00:00:00",
		DataSource:    "tidal_gauge",
		SourceName:    "noaa",
		SourceArchive: "noaa",
	}}))

	require.NoError(t, env.pipeline.RunObs(context.Background()))

	assert.Len(t, env.store.fileOrder, 1, "a known name is never appended twice")
	assert.Equal(t, []string{"noaa_stationdata_gauge_2024-01-01T00:00:00.csv"}, env.store.loads,
		"the stranded file is picked up from the pending queue")

	require.NoError(t, env.pipeline.RunObs(context.Background()))
	assert.Len(t, env.store.loads, 1, "subsequent passes stay clean")
}

func TestRunObs_StationMetaFilesFollowLedgerProtocol(t *testing.T) {
	env := newTestEnv(t, false)
	env.store.sourceMetas = []store.SourceMeta{gaugeMeta}
	env.writeHarvestFile(t, "noaa_stationdata_gauge_2024-01-01T00:00:00.csv",
		"TIME,STATION,WATER_LEVEL\n2024-01-01T00:00:00,8651370,1.1\n")
	env.writeHarvestFile(t, "noaa_stationdata_meta_gauge_2024-01-01T00:00:00.csv",
		"STATION\n8651370\n")

	require.NoError(t, env.pipeline.RunObs(context.Background()))

	meta := env.store.obsStationFiles["noaa_stationdata_meta_gauge_2024-01-01T00:00:00.csv"]
	require.NotNil(t, meta, "meta file must be registered in its ledger")
	assert.True(t, meta.Ingested)
	assert.Equal(t, "2024-01-01T00:00:00", meta.Timemark)
	assert.Equal(t, "tidal", meta.LocationType)
	assert.Equal(t, []string{"noaa_stationdata_meta_gauge_2024-01-01T00:00:00.csv"}, env.store.obsStationLoads)

	require.NoError(t, env.pipeline.RunObs(context.Background()))
	assert.Len(t, env.store.obsStationLoads, 1, "ingested meta files are never loaded twice")
}

func TestRunObs_NoSources(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.pipeline.RunObs(context.Background()))
	assert.Error(t, env.pipeline.CheckReadiness(context.Background()),
		"a vacuous pass does not make the service ready")
}
