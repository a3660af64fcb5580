package store

import (
	"context"
	"fmt"
	"os"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
)

// Variable columns the loader may target. The artifact's value column is
// written into exactly one of these; anything else is a corrupt source meta
// row and must not reach SQL.
var dataColumns = map[domain.Scope]map[string]bool{
	domain.ScopeObs: {
		"water_level":       true,
		"tidal_predictions": true,
		"air_pressure":      true,
		"wave_height":       true,
		"wind_speed":        true,
		"stream_elevation":  true,
	},
	domain.ScopeModel: {
		"water_level": true,
		"wave_height": true,
	},
}

func dataTable(scope domain.Scope) string {
	if scope == domain.ScopeModel {
		return "model_data"
	}
	return "obs_data"
}

// LoadDataFile bulk-copies an enriched artifact (source_id,timemark,time,value
// CSV, no header) into the scope's data table under the given variable column,
// and flips the harvest file's ingested flag, in one transaction. Either the
// rows land and the ledger records it, or neither happens. The artifact file
// is left in place; the caller deletes it after this returns.
func (s *Store) LoadDataFile(ctx context.Context, scope domain.Scope, variable, artifactPath, fileName string) (int64, error) {
	if !dataColumns[scope][variable] {
		return 0, fmt.Errorf("load %s: variable %q is not a data column: %w", fileName, variable, domain.ErrUnknownVariable)
	}

	artifact, err := os.Open(artifactPath)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", fileName, err)
	}
	defer artifact.Close()

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", fileName, err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", fileName, err)
	}
	defer tx.Rollback(ctx)

	copySQL := fmt.Sprintf(
		`COPY %s (source_id, timemark, time, %s) FROM STDIN WITH (FORMAT csv, NULL '')`,
		dataTable(scope), variable)
	tag, err := conn.Conn().PgConn().CopyFrom(ctx, artifact, copySQL)
	if err != nil {
		return 0, fmt.Errorf("load %s: copy: %w", fileName, err)
	}

	if err := markIngested(ctx, tx, scope, fileName); err != nil {
		return 0, fmt.Errorf("load %s: %w", fileName, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("load %s: commit: %w", fileName, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteDuplicateTimes removes rows that share a (source_id, time) pair
// within the given time window, keeping the row with the larger ordinal.
// Later loads win: a re-harvested window replaces the overlapping tail of
// the previous one.
func (s *Store) DeleteDuplicateTimes(ctx context.Context, sc domain.LedgerScope, minTime, maxTime string) (int64, error) {
	if minTime == "" || maxTime == "" {
		return 0, nil
	}

	table := dataTable(sc.Scope)
	sourceTable := "obs_source"
	ordinal := "obs_id"
	if sc.Scope == domain.ScopeModel {
		sourceTable = "model_source"
		ordinal = "model_id"
	}

	query := fmt.Sprintf(
		`DELETE FROM %[1]s a
		 USING %[1]s b
		 WHERE a.source_id = b.source_id
		   AND a.time = b.time
		   AND a.%[2]s < b.%[2]s
		   AND a.time BETWEEN $1::timestamp AND $2::timestamp
		   AND a.source_id IN (
		       SELECT source_id FROM %[3]s
		       WHERE data_source = $3 AND source_name = $4 AND source_archive = $5)`,
		table, ordinal, sourceTable)

	tag, err := s.pool.Exec(ctx, query, minTime, maxTime, sc.DataSource, sc.SourceName, sc.SourceArchive)
	if err != nil {
		return 0, fmt.Errorf("delete duplicate times: %w", err)
	}
	return tag.RowsAffected(), nil
}
