package logging

import (
	"context"
	"log/slog"

	"loom/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for pipeline run identifiers.
	FieldRunID = "run_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldModule is the standardized structured logging key for module names.
	FieldModule = "module"
	// FieldArtifactType is the standardized structured logging key for artifact types.
	FieldArtifactType = "artifact_type"
	// FieldFingerprint is the standardized structured logging key for cache fingerprints.
	FieldFingerprint = "fingerprint"
	// FieldEventType marks lifecycle events in structured logs.
	FieldEventType = "event_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if runID, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, runID))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if module, ok := services.ModuleFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldModule, module))
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
