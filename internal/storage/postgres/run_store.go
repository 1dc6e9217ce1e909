// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acuervo/catalog-mirror/internal/store"
)

// RunStoreConfig controls the Postgres connection pool used for run history.
type RunStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type runPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// RunStore persists import run history in the import_runs table.
type RunStore struct {
	pool runPool
}

var _ store.RunRepository = (*RunStore)(nil)

// NewRunStore creates a Postgres-backed RunStore using the provided config.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("progress.postgres_dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool runPool) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StartRun inserts the run row as running. Re-running the same id after a
// crash only refreshes the start timestamp.
func (s *RunStore) StartRun(ctx context.Context, runID uuid.UUID, warehouse string, startedAt time.Time) error {
	const query = `
INSERT INTO import_runs (id, warehouse, started_at, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET started_at = EXCLUDED.started_at, status = EXCLUDED.status`
	if _, err := s.pool.Exec(ctx, query, runID, warehouse, startedAt, store.RunRunning); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// RecordStats replaces the run's counters with the latest snapshot.
func (s *RunStore) RecordStats(ctx context.Context, runID uuid.UUID, reviewed, created, updated, requests int64, at time.Time) error {
	const query = `
UPDATE import_runs
SET reviewed = $2, created = $3, updated = $4, requests = $5, stats_at = $6
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, runID, reviewed, created, updated, requests, at)
	if err != nil {
		return fmt.Errorf("record run stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RecordPause increments the run's pause counter.
func (s *RunStore) RecordPause(ctx context.Context, runID uuid.UUID, at time.Time) error {
	const query = `
UPDATE import_runs SET pauses = pauses + 1, paused_at = $2 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, runID, at)
	if err != nil {
		return fmt.Errorf("record run pause: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CompleteRun marks the run finished with the provided status and error.
func (s *RunStore) CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status store.RunStatus, errMsg *string) error {
	const query = `
UPDATE import_runs SET finished_at = $2, status = $3, error_message = $4 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, runID, finishedAt, status, errMsg)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetRun loads a single run or returns store.ErrNotFound.
func (s *RunStore) GetRun(ctx context.Context, runID uuid.UUID) (store.Run, error) {
	const query = `
SELECT id, warehouse, started_at, finished_at, status, error_message,
       reviewed, created, updated, requests, pauses
FROM import_runs WHERE id = $1`
	var run store.Run
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.ID,
		&run.Warehouse,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.ErrorMessage,
		&run.Reviewed,
		&run.Created,
		&run.Updated,
		&run.Requests,
		&run.Pauses,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Run{}, store.ErrNotFound
	}
	if err != nil {
		return store.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}
