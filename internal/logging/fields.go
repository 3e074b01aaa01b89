package logging

import (
	"context"
	"log/slog"

	"microstatus/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldDatasetID is the standardized key for dataset record identifiers.
	FieldDatasetID = "dataset_id"
	// FieldDataset is the standardized key for dataset names.
	FieldDataset = "dataset"
	// FieldStage is the standardized key for pipeline stage names.
	FieldStage = "stage"
	// FieldPhase is the standardized key for imaging or processing phases.
	FieldPhase = "phase"
	// FieldTickID is the standardized key for scan tick correlation identifiers.
	FieldTickID = "tick_id"
	// FieldResource is the standardized key for storage resource names.
	FieldResource = "resource"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step for the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for the consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.DatasetIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldDatasetID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if tick, ok := services.TickIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTickID, tick))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
