package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/acuervo/catalog-mirror/internal/progress"
)

// LogSink renders progress events as structured logs. It is the default sink
// and the console face of an import run.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.logger.Log(levelFor(evt.Kind), string(evt.Kind), fieldsFor(evt)...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

func levelFor(kind progress.Kind) zapcore.Level {
	switch kind {
	case progress.KindError, progress.KindRunError:
		return zapcore.ErrorLevel
	case progress.KindRunPaused:
		return zapcore.WarnLevel
	case progress.KindProductChanged, progress.KindProductAvailable:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func fieldsFor(evt progress.Event) []zap.Field {
	fields := make([]zap.Field, 0, 8)
	if evt.Warehouse != "" {
		fields = append(fields, zap.String("warehouse", evt.Warehouse))
	}
	if evt.CategoryID != 0 {
		fields = append(fields, zap.Int("category_id", evt.CategoryID))
	}
	if evt.ProductID != "" {
		fields = append(fields, zap.String("product_id", evt.ProductID))
	}
	if evt.Path != "" {
		fields = append(fields, zap.String("path", evt.Path))
	}
	if evt.Location != "" {
		fields = append(fields, zap.String("location", evt.Location))
	}
	switch evt.Kind {
	case progress.KindCategoryAvailable, progress.KindCategoryProducts, progress.KindRequestsSubmitted:
		fields = append(fields, zap.Int64("count", evt.Count))
	case progress.KindImportStats:
		fields = append(fields,
			zap.Int64("reviewed", evt.Reviewed),
			zap.Int64("created", evt.Created),
			zap.Int64("updated", evt.Updated),
		)
	case progress.KindRunningTime, progress.KindRunPaused, progress.KindRunDone:
		fields = append(fields, zap.Duration("elapsed", evt.Dur))
	}
	if evt.Note != "" {
		fields = append(fields, zap.String("note", evt.Note))
	}
	return fields
}
