package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
)

// Known-file ledger. Each scope has its own table; the column sets differ
// only in the model instance and timemark columns.

func ledgerTable(scope domain.Scope) string {
	if scope == domain.ScopeModel {
		return "harvest_model_file"
	}
	return "harvest_obs_file"
}

// scopeFilter builds the WHERE fragment selecting one source's ledger rows.
func scopeFilter(sc domain.LedgerScope) (string, []any) {
	where := `data_source = $1 AND source_name = $2 AND source_archive = $3`
	args := []any{sc.DataSource, sc.SourceName, sc.SourceArchive}
	if sc.Scope == domain.ScopeModel {
		where += ` AND source_instance = $4`
		args = append(args, sc.Instance)
	} else if sc.Variable != "" {
		where += ` AND source_variable = $4`
		args = append(args, sc.Variable)
	}
	return where, args
}

// IngestedFileNames returns the names of files already loaded for the scope.
// This is the legacy reconciliation set: a registered-but-unloaded file is
// not in it, so rediscovery can see such a file as new.
func (s *Store) IngestedFileNames(ctx context.Context, sc domain.LedgerScope) (map[string]bool, error) {
	where, args := scopeFilter(sc)
	return s.fileNameSet(ctx,
		`SELECT file_name FROM `+ledgerTable(sc.Scope)+` WHERE `+where+` AND ingested = TRUE`, args)
}

// RegisteredFileNames returns every registered name for the scope, loaded or
// not. The strict reconciliation mode filters against this set.
func (s *Store) RegisteredFileNames(ctx context.Context, sc domain.LedgerScope) (map[string]bool, error) {
	where, args := scopeFilter(sc)
	return s.fileNameSet(ctx,
		`SELECT file_name FROM `+ledgerTable(sc.Scope)+` WHERE `+where, args)
}

func (s *Store) fileNameSet(ctx context.Context, query string, args []any) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("ledger names: %w", err)
		}
		names[name] = true
	}
	return names, rows.Err()
}

// RegisterFiles bulk-appends candidates to the scope's ledger. Append only:
// a name collision is a protocol violation upstream and surfaces as a
// constraint error rather than an upsert.
func (s *Store) RegisterFiles(ctx context.Context, sc domain.LedgerScope, files []domain.HarvestFile) error {
	if len(files) == 0 {
		return nil
	}

	table := ledgerTable(sc.Scope)
	columns := []string{
		"dir_path", "file_name", "processing_datetime", "data_date_time",
		"data_begin_time", "data_end_time",
		"data_source", "source_name", "source_archive", "ingested", "overlap_past_file_date_time",
	}
	if sc.Scope == domain.ScopeModel {
		columns = append(columns, "source_instance", "timemark")
	} else {
		columns = append(columns, "source_variable", "location_type", "timemark")
	}

	processedAt := domain.Now().Format("2006-01-02T15:04:05")
	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{table}, columns,
		pgx.CopyFromSlice(len(files), func(i int) ([]any, error) {
			f := files[i]
			row := []any{
				f.DirPath, f.FileName, processedAt, f.DataDateTime,
				f.DataBeginTime, f.DataEndTime,
				f.DataSource, f.SourceName, f.SourceArchive,
				f.Ingested, f.OverlapPastFileDateTime,
			}
			if sc.Scope == domain.ScopeModel {
				row = append(row, sc.Instance, f.DataDateTime)
			} else {
				row = append(row, f.SourceVariable, f.LocationType, f.DataDateTime)
			}
			return row, nil
		}))
	if err != nil {
		return fmt.Errorf("register %d files in %s: %w", len(files), table, err)
	}
	return nil
}

// PendingFiles returns the scope's registered-but-unloaded files in data
// date order. Loaded files never reappear here, which is what makes the
// pipeline re-entrant.
func (s *Store) PendingFiles(ctx context.Context, sc domain.LedgerScope) ([]domain.HarvestFile, error) {
	where, args := scopeFilter(sc)
	query := `SELECT dir_path, file_name, data_date_time, data_begin_time, data_end_time,
	                 data_source, source_name, source_archive, ingested, overlap_past_file_date_time
	          FROM ` + ledgerTable(sc.Scope) + `
	          WHERE ` + where + ` AND ingested = FALSE
	          ORDER BY data_date_time, file_name`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pending files: %w", err)
	}
	defer rows.Close()

	var files []domain.HarvestFile
	for rows.Next() {
		var f domain.HarvestFile
		if err := rows.Scan(&f.DirPath, &f.FileName, &f.DataDateTime, &f.DataBeginTime, &f.DataEndTime,
			&f.DataSource, &f.SourceName, &f.SourceArchive, &f.Ingested, &f.OverlapPastFileDateTime); err != nil {
			return nil, fmt.Errorf("pending files: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// MarkIngested flips one ledger row's ingested flag. Idempotent: flipping an
// already-true flag changes nothing. The loader performs this flip inside its
// load transaction; this standalone form exists for operator repair of a row
// whose data was loaded out of band.
func (s *Store) MarkIngested(ctx context.Context, scope domain.Scope, fileName string) error {
	return markIngested(ctx, s.pool, scope, fileName)
}

// execer covers both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func markIngested(ctx context.Context, db execer, scope domain.Scope, fileName string) error {
	tag, err := db.Exec(ctx,
		`UPDATE `+ledgerTable(scope)+` SET ingested = TRUE WHERE file_name = $1`, fileName)
	if err != nil {
		return fmt.Errorf("mark ingested %s: %w", fileName, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark ingested %s: %w", fileName, domain.ErrNotFound)
	}
	return nil
}
