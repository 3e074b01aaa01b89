package services

import "context"

type contextKey int

const (
	datasetIDKey contextKey = iota
	stageKey
	tickIDKey
)

// WithDatasetID tags ctx with the dataset being evaluated.
func WithDatasetID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, datasetIDKey, id)
}

// DatasetIDFromContext extracts the dataset identifier if present.
func DatasetIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(datasetIDKey).(int64)
	return id, ok
}

// WithStage tags ctx with a pipeline stage name. Empty names are ignored.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, stageKey)
}

// WithTickID tags ctx with the scan tick correlation identifier.
func WithTickID(ctx context.Context, id string) context.Context {
	return withString(ctx, tickIDKey, id)
}

func TickIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, tickIDKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}
