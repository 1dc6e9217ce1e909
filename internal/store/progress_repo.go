package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("run record not found")

// RunStatus mirrors the import_runs status column.
type RunStatus string

// Run statuses persisted in import_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Run models the import_runs table.
type Run struct {
	// ID is the primary key of import_runs.
	ID uuid.UUID
	// Warehouse is the warehouse code the run imported.
	Warehouse string
	// StartedAt captures when the run was first marked running.
	StartedAt time.Time
	// FinishedAt is nil until the run is marked success/error.
	FinishedAt *time.Time
	// Status is running/success/error.
	Status RunStatus
	// ErrorMessage optionally stores the final failure reason.
	ErrorMessage *string
	// Reviewed, Created, Updated and Requests hold the final counters.
	Reviewed int64
	Created  int64
	Updated  int64
	Requests int64
	// Pauses counts rate-limit backoffs taken during the run.
	Pauses int64
}

// RunRepository persists import run history.
type RunRepository interface {
	// StartRun inserts (or idempotently updates) the run row as running.
	StartRun(ctx context.Context, runID uuid.UUID, warehouse string, startedAt time.Time) error
	// RecordStats replaces the run's counters with the latest snapshot.
	RecordStats(ctx context.Context, runID uuid.UUID, reviewed, created, updated, requests int64, at time.Time) error
	// RecordPause increments the run's pause counter.
	RecordPause(ctx context.Context, runID uuid.UUID, at time.Time) error
	// CompleteRun marks the run finished with the provided status and error.
	CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status RunStatus, errMsg *string) error
	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
}
