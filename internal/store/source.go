package store

import (
	"context"
	"fmt"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
)

// SourceMeta describes one registered measurement source: the tag its files
// carry, the archive that produces them, and the variable semantics of the
// value column.
type SourceMeta struct {
	Scope          domain.Scope
	DataSource     string
	SourceName     string
	SourceArchive  string
	SourceInstance string // model only
	Metclass       string // model only
	Variable       string
	FilenamePrefix string
	LocationType   string
	Units          string
}

// SourceExists reports whether a source with the given filename prefix (and,
// for model scopes, instance) is already registered.
func (s *Store) SourceExists(ctx context.Context, scope domain.Scope, prefix, instance string) (bool, error) {
	var query string
	args := []any{prefix}
	if scope == domain.ScopeModel {
		query = `SELECT EXISTS (SELECT 1 FROM model_source_meta WHERE filename_prefix = $1 AND source_instance = $2)`
		args = append(args, instance)
	} else {
		query = `SELECT EXISTS (SELECT 1 FROM obs_source_meta WHERE filename_prefix = $1)`
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("source exists %s: %w", prefix, err)
	}
	return exists, nil
}

// RegisterSource inserts the source meta row and materializes one source row
// per station of the meta's location type, all in one transaction. Insert
// only: registering a prefix twice is a caller bug and fails on the unique
// constraint.
func (s *Store) RegisterSource(ctx context.Context, meta SourceMeta) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("register source %s: %w", meta.FilenamePrefix, err)
	}
	defer tx.Rollback(ctx)

	if meta.Scope == domain.ScopeModel {
		_, err = tx.Exec(ctx,
			`INSERT INTO model_source_meta
			   (data_source, source_name, source_archive, source_instance, forcing_metclass,
			    source_variable, filename_prefix, location_type, units)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			meta.DataSource, meta.SourceName, meta.SourceArchive, meta.SourceInstance,
			meta.Metclass, meta.Variable, meta.FilenamePrefix, meta.LocationType, meta.Units)
		if err == nil {
			_, err = tx.Exec(ctx,
				`INSERT INTO model_source
				   (station_id, data_source, source_name, source_archive, source_instance,
				    forcing_metclass, source_variable, units)
				 SELECT station_id, $1, $2, $3, $4, $5, $6, $7
				 FROM gauge_station WHERE location_type = $8`,
				meta.DataSource, meta.SourceName, meta.SourceArchive, meta.SourceInstance,
				meta.Metclass, meta.Variable, meta.Units, meta.LocationType)
		}
	} else {
		_, err = tx.Exec(ctx,
			`INSERT INTO obs_source_meta
			   (data_source, source_name, source_archive, source_variable, filename_prefix, location_type, units)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			meta.DataSource, meta.SourceName, meta.SourceArchive, meta.Variable,
			meta.FilenamePrefix, meta.LocationType, meta.Units)
		if err == nil {
			_, err = tx.Exec(ctx,
				`INSERT INTO obs_source
				   (station_id, data_source, source_name, source_archive, source_variable, units)
				 SELECT station_id, $1, $2, $3, $4, $5
				 FROM gauge_station WHERE location_type = $6`,
				meta.DataSource, meta.SourceName, meta.SourceArchive,
				meta.Variable, meta.Units, meta.LocationType)
		}
	}
	if err != nil {
		return fmt.Errorf("register source %s: %w", meta.FilenamePrefix, err)
	}
	return tx.Commit(ctx)
}

// ListSourceMeta returns every registered source for a scope in registration
// order. The observation pipeline iterates this to drive its per-source runs.
func (s *Store) ListSourceMeta(ctx context.Context, scope domain.Scope) ([]SourceMeta, error) {
	var query string
	if scope == domain.ScopeModel {
		query = `SELECT data_source, source_name, source_archive, source_instance, forcing_metclass,
		                source_variable, filename_prefix, location_type, units
		         FROM model_source_meta ORDER BY meta_id`
	} else {
		query = `SELECT data_source, source_name, source_archive, '', '',
		                source_variable, filename_prefix, location_type, units
		         FROM obs_source_meta ORDER BY meta_id`
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list source meta: %w", err)
	}
	defer rows.Close()

	var metas []SourceMeta
	for rows.Next() {
		m := SourceMeta{Scope: scope}
		if err := rows.Scan(&m.DataSource, &m.SourceName, &m.SourceArchive, &m.SourceInstance,
			&m.Metclass, &m.Variable, &m.FilenamePrefix, &m.LocationType, &m.Units); err != nil {
			return nil, fmt.Errorf("list source meta: %w", err)
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// SourceIDsByStation resolves each station name to its source ID within one
// scope. Stations with no source row are simply absent from the result; the
// binder decides what absence means.
func (s *Store) SourceIDsByStation(ctx context.Context, sc domain.LedgerScope, stations []string) (map[string]int64, error) {
	if len(stations) == 0 {
		return map[string]int64{}, nil
	}

	var query string
	args := []any{sc.DataSource, sc.SourceName, sc.SourceArchive, stations}
	if sc.Scope == domain.ScopeModel {
		query = `SELECT st.station_name, src.source_id
		         FROM model_source src
		         JOIN gauge_station st ON st.station_id = src.station_id
		         WHERE src.data_source = $1 AND src.source_name = $2 AND src.source_archive = $3
		           AND st.station_name = ANY($4) AND src.source_instance = $5`
		args = append(args, sc.Instance)
	} else {
		query = `SELECT st.station_name, src.source_id
		         FROM obs_source src
		         JOIN gauge_station st ON st.station_id = src.station_id
		         WHERE src.data_source = $1 AND src.source_name = $2 AND src.source_archive = $3
		           AND st.station_name = ANY($4)`
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("source ids by station: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64, len(stations))
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("source ids by station: %w", err)
		}
		ids[name] = id
	}
	return ids, rows.Err()
}
