package store

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
)

// Store is the warehouse gateway. All ledger, source, station, and data table
// access goes through it; one pgx pool is shared by every pipeline stage.
type Store struct {
	pool *pgxpool.Pool
}

// New connects a pool to the warehouse DSN and pings it.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool. Integration tests use this to share the
// container's pool.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

// scopeLockKey maps a pipeline scope onto a stable advisory-lock key.
func scopeLockKey(scope domain.Scope) int64 {
	h := fnv.New64a()
	h.Write([]byte("gauge-data-ingest/" + string(scope)))
	return int64(h.Sum64())
}

// AcquireScopeLock takes the session advisory lock guarding one scope's
// discover-and-register sequence, blocking until it is free. Two runs over
// the same scope serialize here so neither double-registers a file.
func (s *Store) AcquireScopeLock(ctx context.Context, scope domain.Scope) (release func(), err error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}
	key := scopeLockKey(scope)
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("advisory lock scope %s: %w", scope, err)
	}
	release = func() {
		// Unlock on the same session; best effort, the session drop frees it
		// regardless.
		_, _ = conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, key)
		conn.Release()
	}
	return release, nil
}
