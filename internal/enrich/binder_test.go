package enrich

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
)

type stubLookup struct {
	ids         map[string]int64
	gotScope    domain.LedgerScope
	gotStations []string
}

func (s *stubLookup) SourceIDsByStation(_ context.Context, sc domain.LedgerScope, stations []string) (map[string]int64, error) {
	s.gotScope = sc
	s.gotStations = stations
	return s.ids, nil
}

var testScope = domain.LedgerScope{
	Scope:         domain.ScopeObs,
	DataSource:    "tidal_gauge",
	SourceName:    "noaa",
	SourceArchive: "noaa",
}

func writeHarvestFile(t *testing.T, body string) domain.HarvestFile {
	t.Helper()
	dir := t.TempDir()
	name := "noaa_stationdata_gauge_2024-01-01T00:00:00.csv"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	return domain.HarvestFile{
		DirPath:      dir,
		FileName:     name,
		DataDateTime: "2024-01-01T00:00:00",
	}
}

func TestBind(t *testing.T) {
	file := writeHarvestFile(t,
		"TIME,STATION,WATER_LEVEL\n"+
			"2024-01-01T00:00:00,8651370,1.1\n"+
			"2024-01-01T01:00:00,8651370,1.2\n"+
			"2024-01-01T00:00:00,8652587,0.4\n")
	lookup := &stubLookup{ids: map[string]int64{"8651370": 7, "8652587": 9}}
	b := NewBinder(t.TempDir(), lookup, slog.New(slog.NewTextHandler(io.Discard, nil)))

	artifactPath, err := b.Bind(context.Background(), testScope, file)
	require.NoError(t, err)

	assert.Equal(t, "data_copy_"+file.FileName, filepath.Base(artifactPath))
	assert.Equal(t, testScope, lookup.gotScope)
	assert.Equal(t, []string{"8651370", "8652587"}, lookup.gotStations, "distinct stations, sorted")

	body, err := os.ReadFile(artifactPath)
	require.NoError(t, err)
	assert.Equal(t,
		"7,2024-01-01T00:00:00,2024-01-01T00:00:00,1.1\n"+
			"7,2024-01-01T00:00:00,2024-01-01T01:00:00,1.2\n"+
			"9,2024-01-01T00:00:00,2024-01-01T00:00:00,0.4\n",
		string(body))
}

func TestBind_UnresolvedStationKeepsRowWithEmptySourceID(t *testing.T) {
	file := writeHarvestFile(t,
		"TIME,STATION,WATER_LEVEL\n"+
			"2024-01-01T00:00:00,8651370,1.1\n"+
			"2024-01-01T00:00:00,UNKNOWN,2.2\n")
	lookup := &stubLookup{ids: map[string]int64{"8651370": 7}}
	b := NewBinder(t.TempDir(), lookup, slog.New(slog.NewTextHandler(io.Discard, nil)))

	artifactPath, err := b.Bind(context.Background(), testScope, file)
	require.NoError(t, err)

	body, err := os.ReadFile(artifactPath)
	require.NoError(t, err)
	assert.Contains(t, string(body), ",2024-01-01T00:00:00,2024-01-01T00:00:00,2.2\n",
		"unresolved rows are carried, not dropped")
}

func TestBind_ValueColumnFoundByElimination(t *testing.T) {
	file := writeHarvestFile(t,
		"STATION,WAVE_HEIGHT,TIME\n"+
			"41025,2.5,2024-01-01T00:00:00\n")
	lookup := &stubLookup{ids: map[string]int64{"41025": 3}}
	b := NewBinder(t.TempDir(), lookup, slog.New(slog.NewTextHandler(io.Discard, nil)))

	artifactPath, err := b.Bind(context.Background(), testScope, file)
	require.NoError(t, err)

	body, err := os.ReadFile(artifactPath)
	require.NoError(t, err)
	assert.Equal(t, "3,2024-01-01T00:00:00,2024-01-01T00:00:00,2.5\n", string(body))
}

func TestBind_RejectsHeaderWithoutStation(t *testing.T) {
	file := writeHarvestFile(t, "TIME,WATER_LEVEL\n2024-01-01T00:00:00,1.1\n")
	b := NewBinder(t.TempDir(), &stubLookup{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := b.Bind(context.Background(), testScope, file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STATION")
}

func TestBind_TimemarkTokenFollowsProvenance(t *testing.T) {
	const body = "TIME,STATION,WATER_LEVEL\n2024-01-01T06:00:00,8651370,1.4\n"
	name := "adcirc_gfs_RENCI_%s_EC95D_%s_NOAASTATIONS_" +
		"2024-01-01T06:12:30_2024-01-01T06:00:00_2023-12-31T18:00:00.csv"

	tests := []struct {
		name       string
		dataSource string
		fileName   string
		timemark   string
	}{
		{
			name:       "forecast takes the second token",
			dataSource: "GFSFORECAST_EC95D",
			fileName:   fmt.Sprintf(name, "GFSFORECAST", "FORECAST"),
			timemark:   "2024-01-01T06:00:00",
		},
		{
			name:       "nowcast takes the third token",
			dataSource: "NOWCAST_EC95D",
			fileName:   fmt.Sprintf(name, "NOWCAST", "NOWCAST"),
			timemark:   "2023-12-31T18:00:00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, tt.fileName), []byte(body), 0o644))
			file := domain.HarvestFile{DirPath: dir, FileName: tt.fileName, DataDateTime: "2024-01-01T06:00"}
			sc := domain.LedgerScope{
				Scope: domain.ScopeModel, DataSource: tt.dataSource,
				SourceName: "adcirc", SourceArchive: "renci", Instance: "ncsc123",
			}
			lookup := &stubLookup{ids: map[string]int64{"8651370": 5}}
			b := NewBinder(t.TempDir(), lookup, slog.New(slog.NewTextHandler(io.Discard, nil)))

			artifactPath, err := b.Bind(context.Background(), sc, file)
			require.NoError(t, err)

			out, err := os.ReadFile(artifactPath)
			require.NoError(t, err)
			assert.Equal(t, "5,"+tt.timemark+",2024-01-01T06:00:00,1.4\n", string(out))
		})
	}
}
