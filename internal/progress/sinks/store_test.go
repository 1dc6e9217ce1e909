package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/acuervo/catalog-mirror/internal/progress"
	"github.com/acuervo/catalog-mirror/internal/store"
)

// TestStoreSinkPersistsRunLifecycle ensures run start, stats, and completion reach the repository.
func TestStoreSinkPersistsRunLifecycle(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	runUUID := uuid.New()
	runID := progress.UUIDToBytes(runUUID)
	now := time.Now()

	batch := []progress.Event{
		{RunID: runID, Kind: progress.KindRunStart, Warehouse: "svq1", TS: now},
		{RunID: runID, Kind: progress.KindRunPaused, Warehouse: "svq1", TS: now.Add(time.Second), Dur: time.Minute},
		{
			RunID:    runID,
			Kind:     progress.KindImportStats,
			TS:       now.Add(2 * time.Second),
			Reviewed: 10,
			Created:  4,
			Updated:  6,
			Count:    25,
		},
		{RunID: runID, Kind: progress.KindRunDone, TS: now.Add(3 * time.Second), Dur: 3 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, []uuid.UUID{runUUID}, repo.starts)
	require.Equal(t, []uuid.UUID{runUUID}, repo.pauses)
	require.Equal(t, []uuid.UUID{runUUID}, repo.completes)
	require.Len(t, repo.stats, 1)
	require.Equal(t, int64(10), repo.stats[0].reviewed)
	require.Equal(t, int64(4), repo.stats[0].created)
	require.Equal(t, int64(6), repo.stats[0].updated)
	require.Equal(t, int64(25), repo.stats[0].requests)
}

// TestStoreSinkIgnoresProductEvents keeps per-product noise out of the run table.
func TestStoreSinkIgnoresProductEvents(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Kind: progress.KindProductCreated, ProductID: "77", TS: time.Now()},
		{RunID: runID, Kind: progress.KindProductChanged, ProductID: "77", Path: "display_name", TS: time.Now()},
	}))

	require.Empty(t, repo.starts)
	require.Empty(t, repo.completes)
	require.Empty(t, repo.stats)
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{fail: true}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())
	err := sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Kind: progress.KindRunStart, TS: time.Now()},
	})
	require.Error(t, err)
}

type fakeRunRepo struct {
	fail      bool
	starts    []uuid.UUID
	pauses    []uuid.UUID
	completes []uuid.UUID
	stats     []statsCall
}

type statsCall struct {
	runID    uuid.UUID
	reviewed int64
	created  int64
	updated  int64
	requests int64
}

func (f *fakeRunRepo) StartRun(_ context.Context, runID uuid.UUID, warehouse string, startedAt time.Time) error {
	if f.fail {
		return assertErr("start")
	}
	_, _ = warehouse, startedAt
	f.starts = append(f.starts, runID)
	return nil
}

func (f *fakeRunRepo) RecordStats(
	_ context.Context,
	runID uuid.UUID,
	reviewed, created, updated, requests int64,
	_ time.Time,
) error {
	if f.fail {
		return assertErr("stats")
	}
	f.stats = append(f.stats, statsCall{
		runID:    runID,
		reviewed: reviewed,
		created:  created,
		updated:  updated,
		requests: requests,
	})
	return nil
}

func (f *fakeRunRepo) RecordPause(_ context.Context, runID uuid.UUID, _ time.Time) error {
	if f.fail {
		return assertErr("pause")
	}
	f.pauses = append(f.pauses, runID)
	return nil
}

func (f *fakeRunRepo) CompleteRun(
	_ context.Context,
	runID uuid.UUID,
	_ time.Time,
	_ store.RunStatus,
	_ *string,
) error {
	if f.fail {
		return assertErr("complete")
	}
	f.completes = append(f.completes, runID)
	return nil
}

func (f *fakeRunRepo) GetRun(context.Context, uuid.UUID) (store.Run, error) {
	return store.Run{}, assertErr("read")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
