package progress

import (
	"fmt"
	"math"
	"time"

	"loom/internal/artifact"
	"loom/internal/registry"
	"loom/internal/stablejson"
	"loom/internal/store"
)

// Event status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Emitter writes progress artifacts for one run.
type Emitter struct {
	store    *store.Store
	runID    string
	producer string
	now      func() time.Time
}

// NewEmitter constructs an emitter stamping events with the given producer
// name. The run id is taken from the store.
func NewEmitter(st *store.Store, producerName string) *Emitter {
	if producerName == "" {
		producerName = "pipeline"
	}
	return &Emitter{
		store:    st,
		runID:    st.RunID(),
		producer: producerName,
		now:      time.Now,
	}
}

// Emit records a running-status event with no extra fields.
func (e *Emitter) Emit(stage string, current, total int, message string) (*artifact.Envelope, error) {
	return e.EmitStatus(stage, current, total, message, StatusRunning, nil)
}

// EmitStatus records one progress event. When total is positive the payload
// carries a percent field clamped to [0, 100]. Extra fields are merged into
// the payload and may shadow the standard ones.
func (e *Emitter) EmitStatus(stage string, current, total int, message, status string, extra map[string]any) (*artifact.Envelope, error) {
	payload := map[string]any{
		"run_id":    e.runID,
		"stage":     stage,
		"current":   current,
		"total":     total,
		"message":   message,
		"status":    status,
		"timestamp": e.now().UTC().Format("2006-01-02T15:04:05") + "Z",
	}
	if total > 0 {
		percent := float64(current) / float64(total) * 100.0
		payload["percent"] = math.Max(0.0, math.Min(100.0, percent))
	}
	for k, v := range extra {
		payload[k] = v
	}

	fingerprint, err := stablejson.HashObject(payload)
	if err != nil {
		return nil, fmt.Errorf("hash progress event: %w", err)
	}
	stageHash, err := stablejson.HashObject(map[string]any{"stage": stage})
	if err != nil {
		return nil, fmt.Errorf("hash progress stage: %w", err)
	}

	env := artifact.New(artifact.KindProgress, payload)
	env.Producer = artifact.Producer{Name: e.producer, Version: "1", ParamsHash: stageHash}
	env.Fingerprint = fingerprint
	if err := e.store.WriteArtifact(env); err != nil {
		return nil, fmt.Errorf("persist progress event: %w", err)
	}
	return env, nil
}

// Callback adapts the emitter to the module progress signature. Write
// failures are swallowed: progress must never fail a run.
func (e *Emitter) Callback() registry.ProgressFunc {
	return func(stage string, current, total int, message string) {
		_, _ = e.Emit(stage, current, total, message)
	}
}
