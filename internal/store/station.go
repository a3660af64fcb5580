package store

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jszwec/csvutil"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
)

// Station geometry and model station metadata.

// IngestStationGeom bulk-copies one station geometry CSV (with header) into
// the station table. The caller removes the file after a successful load.
func (s *Store) IngestStationGeom(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("ingest station geom %s: %w", path, err)
	}
	defer f.Close()

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingest station geom %s: %w", path, err)
	}
	defer conn.Release()

	tag, err := conn.Conn().PgConn().CopyFrom(ctx, f,
		`COPY gauge_station (station_name, lat, lon, tz, gauge_owner, location_name,
		                     location_type, country, state, county, geom)
		 FROM STDIN WITH (FORMAT csv, HEADER, NULL '')`)
	if err != nil {
		return 0, fmt.Errorf("ingest station geom %s: %w", path, err)
	}
	return tag.RowsAffected(), nil
}

// StationFileMeta is one row of the model station-metadata ledger: a
// per-run station CSV awaiting load into the model_station table. Same
// registration and ingested-flag protocol as data files.
type StationFileMeta struct {
	DirPath        string
	FileName       string
	DataDateTime   string
	DataSource     string
	SourceName     string
	SourceArchive  string
	SourceInstance string
	Timemark       string
	LocationType   string
	ModelRunID     string
	Ingested       bool
}

// RegisteredStationFileNames returns every station-metadata file name already
// in the ledger for a model run.
func (s *Store) RegisteredStationFileNames(ctx context.Context, modelRunID string) (map[string]bool, error) {
	return s.fileNameSet(ctx,
		`SELECT file_name FROM harvest_station_file WHERE model_run_id = $1`, []any{modelRunID})
}

// RegisterStationFiles bulk-appends station-metadata candidates to their
// ledger.
func (s *Store) RegisterStationFiles(ctx context.Context, files []StationFileMeta) error {
	if len(files) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{"harvest_station_file"},
		[]string{"dir_path", "file_name", "data_date_time", "data_source", "source_name",
			"source_archive", "source_instance", "timemark", "location_type", "model_run_id", "ingested"},
		pgx.CopyFromSlice(len(files), func(i int) ([]any, error) {
			f := files[i]
			return []any{f.DirPath, f.FileName, f.DataDateTime, f.DataSource, f.SourceName,
				f.SourceArchive, f.SourceInstance, f.Timemark, f.LocationType, f.ModelRunID, f.Ingested}, nil
		}))
	if err != nil {
		return fmt.Errorf("register %d station files: %w", len(files), err)
	}
	return nil
}

// PendingStationFiles returns a run's registered-but-unloaded station
// metadata files in data date order.
func (s *Store) PendingStationFiles(ctx context.Context, modelRunID string) ([]StationFileMeta, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT dir_path, file_name, data_date_time, data_source, source_name,
		        source_archive, source_instance, timemark, location_type, model_run_id, ingested
		 FROM harvest_station_file
		 WHERE model_run_id = $1 AND ingested = FALSE
		 ORDER BY data_date_time, file_name`, modelRunID)
	if err != nil {
		return nil, fmt.Errorf("pending station files: %w", err)
	}
	defer rows.Close()

	var files []StationFileMeta
	for rows.Next() {
		var f StationFileMeta
		if err := rows.Scan(&f.DirPath, &f.FileName, &f.DataDateTime, &f.DataSource, &f.SourceName,
			&f.SourceArchive, &f.SourceInstance, &f.Timemark, &f.LocationType, &f.ModelRunID, &f.Ingested); err != nil {
			return nil, fmt.Errorf("pending station files: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// stationMetaRow is the shape of one record in a model station-metadata CSV.
type stationMetaRow struct {
	StationName  string  `csv:"station_name"`
	Lat          float64 `csv:"lat"`
	Lon          float64 `csv:"lon"`
	LocationName string  `csv:"location_name"`
}

// LoadStationFile reads a station-metadata CSV and inserts its rows into the
// model_station table stamped with the run ID, data source, and timemark,
// then flips the ledger flag, in one transaction.
func (s *Store) LoadStationFile(ctx context.Context, meta StationFileMeta) (int64, error) {
	f, err := os.Open(meta.DirPath + "/" + meta.FileName)
	if err != nil {
		return 0, fmt.Errorf("load station file %s: %w", meta.FileName, err)
	}
	defer f.Close()

	stations, err := decodeStationMeta(f)
	if err != nil {
		return 0, fmt.Errorf("load station file %s: %w", meta.FileName, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("load station file %s: %w", meta.FileName, err)
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"model_station"},
		[]string{"station_name", "lat", "lon", "location_name", "location_type",
			"model_run_id", "data_source", "timemark"},
		pgx.CopyFromSlice(len(stations), func(i int) ([]any, error) {
			st := stations[i]
			return []any{st.StationName, st.Lat, st.Lon, st.LocationName,
				meta.LocationType, meta.ModelRunID, meta.DataSource, meta.Timemark}, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("load station file %s: copy: %w", meta.FileName, err)
	}

	res, err := tx.Exec(ctx,
		`UPDATE harvest_station_file SET ingested = TRUE WHERE file_name = $1`, meta.FileName)
	if err != nil {
		return 0, fmt.Errorf("load station file %s: mark ingested: %w", meta.FileName, err)
	}
	if res.RowsAffected() == 0 {
		return 0, fmt.Errorf("load station file %s: mark ingested: %w", meta.FileName, domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("load station file %s: commit: %w", meta.FileName, err)
	}
	return n, nil
}

// ObsStationFileMeta is one row of the observation station-metadata ledger:
// a per-source stationdata_meta CSV awaiting load into the retained station
// table. Same registration and ingested-flag protocol as data files.
type ObsStationFileMeta struct {
	DirPath       string
	FileName      string
	DataDateTime  string
	DataSource    string
	SourceName    string
	SourceArchive string
	LocationType  string
	Timemark      string
	Ingested      bool
}

// RegisteredObsStationFileNames returns every station-metadata file name
// already in the ledger for an observation source.
func (s *Store) RegisteredObsStationFileNames(ctx context.Context, sc domain.LedgerScope) (map[string]bool, error) {
	return s.fileNameSet(ctx,
		`SELECT file_name FROM retain_obs_station_file
		 WHERE data_source = $1 AND source_name = $2 AND source_archive = $3`,
		[]any{sc.DataSource, sc.SourceName, sc.SourceArchive})
}

// RegisterObsStationFiles bulk-appends station-metadata candidates to their
// ledger.
func (s *Store) RegisterObsStationFiles(ctx context.Context, files []ObsStationFileMeta) error {
	if len(files) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{"retain_obs_station_file"},
		[]string{"dir_path", "file_name", "data_date_time", "data_source", "source_name",
			"source_archive", "location_type", "timemark", "ingested"},
		pgx.CopyFromSlice(len(files), func(i int) ([]any, error) {
			f := files[i]
			return []any{f.DirPath, f.FileName, f.DataDateTime, f.DataSource, f.SourceName,
				f.SourceArchive, f.LocationType, f.Timemark, f.Ingested}, nil
		}))
	if err != nil {
		return fmt.Errorf("register %d obs station files: %w", len(files), err)
	}
	return nil
}

// PendingObsStationFiles returns a source's registered-but-unloaded station
// metadata files in data date order.
func (s *Store) PendingObsStationFiles(ctx context.Context, sc domain.LedgerScope) ([]ObsStationFileMeta, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT dir_path, file_name, data_date_time, data_source, source_name,
		        source_archive, location_type, timemark, ingested
		 FROM retain_obs_station_file
		 WHERE data_source = $1 AND source_name = $2 AND source_archive = $3 AND ingested = FALSE
		 ORDER BY data_date_time, file_name`,
		sc.DataSource, sc.SourceName, sc.SourceArchive)
	if err != nil {
		return nil, fmt.Errorf("pending obs station files: %w", err)
	}
	defer rows.Close()

	var files []ObsStationFileMeta
	for rows.Next() {
		var f ObsStationFileMeta
		if err := rows.Scan(&f.DirPath, &f.FileName, &f.DataDateTime, &f.DataSource, &f.SourceName,
			&f.SourceArchive, &f.LocationType, &f.Timemark, &f.Ingested); err != nil {
			return nil, fmt.Errorf("pending obs station files: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// obsStationRow is the only column read from an observation station-metadata
// CSV; everything else about the station comes from the station table.
type obsStationRow struct {
	Station string `csv:"STATION"`
}

// LoadObsStationFile resolves the station names in a stationdata_meta CSV
// against the station table and retains a snapshot of their geometry stamped
// with the source descriptor and timemark, then flips the ledger flag, in one
// transaction. Names without a station row are dropped by the join.
func (s *Store) LoadObsStationFile(ctx context.Context, meta ObsStationFileMeta) (int64, error) {
	f, err := os.Open(meta.DirPath + "/" + meta.FileName)
	if err != nil {
		return 0, fmt.Errorf("load obs station file %s: %w", meta.FileName, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return 0, fmt.Errorf("load obs station file %s: %w", meta.FileName, err)
	}
	var rows []obsStationRow
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("load obs station file %s: %w", meta.FileName, err)
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Station)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("load obs station file %s: %w", meta.FileName, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO retain_obs_station
		   (station_name, lat, lon, location_name, tz, gauge_owner, country, state, county, geom,
		    timemark, data_source, source_name, source_archive, location_type)
		 SELECT station_name, lat, lon, location_name, tz, gauge_owner, country, state, county, geom,
		        $1, $2, $3, $4, $5
		 FROM gauge_station
		 WHERE station_name = ANY($6)`,
		meta.Timemark, meta.DataSource, meta.SourceName, meta.SourceArchive, meta.LocationType, names)
	if err != nil {
		return 0, fmt.Errorf("load obs station file %s: insert: %w", meta.FileName, err)
	}

	res, err := tx.Exec(ctx,
		`UPDATE retain_obs_station_file SET ingested = TRUE WHERE file_name = $1`, meta.FileName)
	if err != nil {
		return 0, fmt.Errorf("load obs station file %s: mark ingested: %w", meta.FileName, err)
	}
	if res.RowsAffected() == 0 {
		return 0, fmt.Errorf("load obs station file %s: mark ingested: %w", meta.FileName, domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("load obs station file %s: commit: %w", meta.FileName, err)
	}
	return tag.RowsAffected(), nil
}

func decodeStationMeta(r io.Reader) ([]stationMetaRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var rows []stationMetaRow
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
