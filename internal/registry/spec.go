package registry

import (
	"context"

	"loom/internal/artifact"
	"loom/internal/store"
)

// ProgressFunc reports module progress back to the engine.
type ProgressFunc func(stage string, current, total int, message string)

// ModuleContext carries everything a module needs to execute one step.
type ModuleContext struct {
	Inputs   map[artifact.Type]*artifact.Envelope
	Params   map[string]any
	Store    *store.Store
	RunID    string
	Progress ProgressFunc
}

// AdapterContext carries the single resolved source artifact for a conversion.
type AdapterContext struct {
	Source   *artifact.Envelope
	Params   map[string]any
	Store    *store.Store
	RunID    string
	Progress ProgressFunc
}

// Module executes one processing step. The returned map must cover every
// declared output type; values may be raw payloads or pre-built envelopes.
type Module interface {
	Execute(ctx context.Context, mc *ModuleContext) (map[artifact.Type]any, error)
}

// ModuleFunc adapts a plain function to the Module interface.
type ModuleFunc func(ctx context.Context, mc *ModuleContext) (map[artifact.Type]any, error)

func (f ModuleFunc) Execute(ctx context.Context, mc *ModuleContext) (map[artifact.Type]any, error) {
	return f(ctx, mc)
}

// Adapter converts one source artifact into a payload of the target type.
type Adapter interface {
	Execute(ctx context.Context, ac *AdapterContext) (any, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context, ac *AdapterContext) (any, error)

func (f AdapterFunc) Execute(ctx context.Context, ac *AdapterContext) (any, error) {
	return f(ctx, ac)
}

// ModuleSpec describes one registered processing step. Name is the cache-key
// namespace; bumping Version invalidates every cached result for the module.
type ModuleSpec struct {
	Name          string
	Version       string
	Inputs        []artifact.Type
	Outputs       []artifact.Type
	Module        Module
	Description   string
	DefaultParams map[string]any
}

// AdapterSpec describes one registered single-hop type converter.
type AdapterSpec struct {
	Name        string
	Version     string
	SourceType  artifact.Type
	TargetType  artifact.Type
	Adapter     Adapter
	Description string
}
