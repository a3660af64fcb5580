// Package enrich turns raw harvest files into loadable artifacts by binding
// each row's station to its source ID and stamping the file's timemark.
package enrich

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
)

// SourceLookup resolves station names to source IDs within one ledger scope.
type SourceLookup interface {
	SourceIDsByStation(ctx context.Context, sc domain.LedgerScope, stations []string) (map[string]int64, error)
}

// Binder produces the enriched intermediate artifact for one harvest file.
type Binder struct {
	ingestDir string
	lookup    SourceLookup
	logger    *slog.Logger
}

func NewBinder(ingestDir string, lookup SourceLookup, logger *slog.Logger) *Binder {
	return &Binder{ingestDir: ingestDir, lookup: lookup, logger: logger}
}

// Bind reads a harvest file's raw rows, resolves their stations to source
// IDs, and writes the headerless artifact data_copy_<file> with rows
// source_id,timemark,time,value. Every input row is carried: a station with
// no source ID yields an empty source_id field, so the load trips referential
// integrity instead of silently shrinking the file. The artifact path is
// returned; the caller deletes it after a committed load.
func (b *Binder) Bind(ctx context.Context, sc domain.LedgerScope, file domain.HarvestFile) (string, error) {
	rows, err := readHarvestRows(filepath.Join(file.DirPath, file.FileName))
	if err != nil {
		return "", fmt.Errorf("bind %s: %w", file.FileName, err)
	}

	stations := distinctStations(rows)
	ids, err := b.lookup.SourceIDsByStation(ctx, sc, stations)
	if err != nil {
		return "", fmt.Errorf("bind %s: %w", file.FileName, err)
	}
	if len(ids) < len(stations) {
		b.logger.Warn("stations without a registered source, rows will carry an empty source_id",
			"file", file.FileName, "stations", len(stations), "resolved", len(ids))
	}

	if err := os.MkdirAll(b.ingestDir, 0o755); err != nil {
		return "", fmt.Errorf("bind %s: %w", file.FileName, err)
	}
	artifactPath := filepath.Join(b.ingestDir, "data_copy_"+file.FileName)
	artifact, err := os.Create(artifactPath)
	if err != nil {
		return "", fmt.Errorf("bind %s: %w", file.FileName, err)
	}
	defer artifact.Close()

	timemark := rowTimemark(sc, file)

	w := csv.NewWriter(artifact)
	for _, row := range rows {
		sourceID := ""
		if id, ok := ids[row.station]; ok {
			sourceID = strconv.FormatInt(id, 10)
		}
		if err := w.Write([]string{sourceID, timemark, row.time, row.value}); err != nil {
			return "", fmt.Errorf("bind %s: %w", file.FileName, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("bind %s: %w", file.FileName, err)
	}
	if err := artifact.Close(); err != nil {
		return "", fmt.Errorf("bind %s: %w", file.FileName, err)
	}
	return artifactPath, nil
}

// rowTimemark resolves the timemark stamped on every row: the filename token
// selected by the source's provenance (forecast runs use the second embedded
// timestamp, nowcasts the third). Files whose name carries no usable token
// fall back to the ledger's data date.
func rowTimemark(sc domain.LedgerScope, file domain.HarvestFile) string {
	tm, err := domain.SelectTimemark(file.FileName, domain.ProvenanceOf(sc.DataSource))
	if err != nil {
		return file.DataDateTime
	}
	return tm
}

type harvestRow struct {
	time    string
	station string
	value   string
}

// readHarvestRows reads a harvest CSV generically: TIME and STATION are found
// by header name, and the single remaining column is the value. The value
// column's name differs per source, which is why this is positional rather
// than a fixed schema.
func readHarvestRows(path string) ([]harvestRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	timeIdx, stationIdx, valueIdx := -1, -1, -1
	for i, col := range header {
		switch col {
		case "TIME":
			timeIdx = i
		case "STATION":
			stationIdx = i
		default:
			valueIdx = i
		}
	}
	if timeIdx < 0 || stationIdx < 0 || valueIdx < 0 {
		return nil, fmt.Errorf("header %v lacks TIME, STATION, or a value column", header)
	}

	var rows []harvestRow
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, harvestRow{
			time:    record[timeIdx],
			station: record[stationIdx],
			value:   record[valueIdx],
		})
	}
	return rows, nil
}

func distinctStations(rows []harvestRow) []string {
	seen := make(map[string]bool)
	var stations []string
	for _, row := range rows {
		if !seen[row.station] {
			seen[row.station] = true
			stations = append(stations, row.station)
		}
	}
	sort.Strings(stations)
	return stations
}
