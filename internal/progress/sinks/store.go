package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/acuervo/catalog-mirror/internal/progress"
	"github.com/acuervo/catalog-mirror/internal/store"
)

// StoreSink persists run lifecycle events and counter snapshots via a
// store.RunRepository. High-volume per-product events are ignored; the
// repository tracks run history, not field history.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards run-level events to the repository. It respects ctx
// deadlines and returns repository errors verbatim.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, evt := range batch {
		if err := s.consumeEvent(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) consumeEvent(ctx context.Context, evt progress.Event) error {
	runID := evt.RunUUID()
	switch evt.Kind {
	case progress.KindRunStart:
		if err := s.repo.StartRun(ctx, runID, evt.Warehouse, evt.TS); err != nil {
			return fmt.Errorf("start run: %w", err)
		}
	case progress.KindRunPaused:
		if err := s.repo.RecordPause(ctx, runID, evt.TS); err != nil {
			return fmt.Errorf("record pause: %w", err)
		}
	case progress.KindImportStats:
		if err := s.repo.RecordStats(ctx, runID, evt.Reviewed, evt.Created, evt.Updated, evt.Count, evt.TS); err != nil {
			return fmt.Errorf("record stats: %w", err)
		}
	case progress.KindRunDone:
		if err := s.repo.CompleteRun(ctx, runID, evt.TS, store.RunSuccess, nil); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	case progress.KindRunError:
		var note *string
		if evt.Note != "" {
			note = &evt.Note
		}
		if err := s.repo.CompleteRun(ctx, runID, evt.TS, store.RunError, note); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
