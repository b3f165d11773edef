package services

import "context"

type contextKey string

const (
	runIDKey  contextKey = "run_id"
	stageKey  contextKey = "stage"
	moduleKey contextKey = "module"
)

// WithRunID annotates context with the pipeline run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithModule annotates context with the executing module name.
func WithModule(ctx context.Context, module string) context.Context {
	if module == "" {
		return ctx
	}
	return context.WithValue(ctx, moduleKey, module)
}

// ModuleFromContext returns the module name if present.
func ModuleFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(moduleKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
