package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"loom/internal/artifact"
	"loom/internal/logging"
	"loom/internal/planner"
	"loom/internal/registry"
	"loom/internal/services"
	"loom/internal/stablejson"
	"loom/internal/store"
)

// Runner drives a plan to completion against one artifact store.
type Runner struct {
	modules  *registry.ModuleRegistry
	adapters *registry.AdapterRegistry
	store    *store.Store
	logger   *slog.Logger
}

// Option customizes runner construction.
type Option func(*Runner)

// WithLogger attaches a logger for step lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New constructs a runner over the given registries and store.
func New(modules *registry.ModuleRegistry, adapters *registry.AdapterRegistry, st *store.Store, opts ...Option) *Runner {
	r := &Runner{
		modules:  modules,
		adapters: adapters,
		store:    st,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Request describes one run: the goal types to produce, seeds injected before
// planning, per-module and per-adapter parameter overrides, and an optional
// progress callback handed to modules.
type Request struct {
	Goals         []artifact.Type
	SeedPayloads  map[artifact.Type]any
	SeedArtifacts []*artifact.Envelope
	ModuleParams  map[string]map[string]any
	AdapterParams map[string]map[string]any
	Progress      registry.ProgressFunc
}

// Run plans and executes the request, returning the goal artifacts by type.
func (r *Runner) Run(ctx context.Context, req Request) (map[artifact.Type]*artifact.Envelope, error) {
	available := make(map[artifact.Type]*artifact.Envelope)

	if err := r.injectSeeds(req, available); err != nil {
		return nil, err
	}

	availableTypes := make([]artifact.Type, 0, len(available))
	for t := range available {
		availableTypes = append(availableTypes, t)
	}
	plan, err := planner.Build(req.Goals, r.modules, r.adapters, availableTypes)
	if err != nil {
		return nil, err
	}

	for _, step := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.runStep(ctx, step.Module, req, available); err != nil {
			return nil, err
		}
	}

	results := make(map[artifact.Type]*artifact.Envelope, len(req.Goals))
	for _, goal := range req.Goals {
		env := available[goal]
		if env == nil {
			env, err = r.store.GetLatestByType(goal)
			if err != nil {
				return nil, err
			}
		}
		if env == nil {
			return nil, &GoalNotProducedError{Type: goal}
		}
		results[goal] = env
	}
	return results, nil
}

// injectSeeds persists seed artifacts verbatim and wraps seed payloads in
// deterministic envelopes, so seeding the same type and payload across runs
// collapses to the same artifact id and fingerprint.
func (r *Runner) injectSeeds(req Request, available map[artifact.Type]*artifact.Envelope) error {
	for _, env := range req.SeedArtifacts {
		if err := r.store.WriteArtifact(env); err != nil {
			return fmt.Errorf("persist seed artifact %s: %w", env.Type, err)
		}
		available[env.Type] = env
	}

	seedTypes := make([]artifact.Type, 0, len(req.SeedPayloads))
	for t := range req.SeedPayloads {
		seedTypes = append(seedTypes, t)
	}
	sort.Strings(seedTypes)
	for _, t := range seedTypes {
		paramsHash, err := stablejson.HashObject(map[string]any{"seed": string(t)})
		if err != nil {
			return fmt.Errorf("hash seed %s: %w", t, err)
		}
		env := &artifact.Envelope{
			ArtifactID:    "seed-" + paramsHash,
			Type:          t,
			SchemaVersion: "1",
			Timebase:      "seconds",
			Payload:       req.SeedPayloads[t],
			Producer:      artifact.Producer{Name: "seed", Version: "0", ParamsHash: paramsHash},
			Fingerprint:   paramsHash,
		}
		if err := r.store.WriteArtifact(env); err != nil {
			return fmt.Errorf("persist seed payload %s: %w", t, err)
		}
		available[t] = env
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, spec *registry.ModuleSpec, req Request, available map[artifact.Type]*artifact.Envelope) error {
	stepCtx := services.WithModule(ctx, spec.Name)
	logger := logging.WithContext(stepCtx, r.logger)

	params := mergeParams(spec.DefaultParams, req.ModuleParams[spec.Name])

	inputs, err := r.resolveInputs(stepCtx, spec, req, available)
	if err != nil {
		return err
	}

	fingerprint, err := artifact.ComputeFingerprint(spec.Name, spec.Version, params, inputs)
	if err != nil {
		return fmt.Errorf("fingerprint module %s: %w", spec.Name, err)
	}

	cached, err := r.cachedOutputs(spec, fingerprint)
	if err != nil {
		return err
	}
	if cached != nil {
		for t, env := range cached {
			available[t] = env
		}
		logger.Info("module cache hit",
			logging.String(logging.FieldEventType, "module_cache_hit"),
			logging.String(logging.FieldFingerprint, fingerprint),
		)
		return nil
	}

	logger.Info("module started",
		logging.String(logging.FieldEventType, "module_start"),
		logging.String(logging.FieldFingerprint, fingerprint),
	)

	mc := &registry.ModuleContext{
		Inputs:   inputs,
		Params:   params,
		Store:    r.store,
		RunID:    r.store.RunID(),
		Progress: req.Progress,
	}
	outputs, err := spec.Module.Execute(stepCtx, mc)
	if err != nil {
		logger.Error("module failed",
			logging.String(logging.FieldEventType, "module_failure"),
			logging.Error(err),
		)
		return fmt.Errorf("module %s: %w", spec.Name, err)
	}

	produced, err := r.storeOutputs(spec, outputs, inputs, params, fingerprint)
	if err != nil {
		return err
	}
	for t, env := range produced {
		available[t] = env
	}

	logger.Info("module completed",
		logging.String(logging.FieldEventType, "module_complete"),
		logging.Int("outputs", len(produced)),
	)
	return nil
}

// resolveInputs satisfies each declared input from memory, then the store's
// latest-by-type, then a single adapter hop. Anything still unresolved is a
// fatal MissingArtifactError.
func (r *Runner) resolveInputs(ctx context.Context, spec *registry.ModuleSpec, req Request, available map[artifact.Type]*artifact.Envelope) (map[artifact.Type]*artifact.Envelope, error) {
	resolved := make(map[artifact.Type]*artifact.Envelope, len(spec.Inputs))
	for _, inputType := range spec.Inputs {
		env := available[inputType]
		if env == nil {
			stored, err := r.store.GetLatestByType(inputType)
			if err != nil {
				return nil, err
			}
			env = stored
		}
		if env == nil {
			bridged, err := r.applyAdapter(ctx, inputType, req, available)
			if err != nil {
				return nil, err
			}
			env = bridged
		}
		if env == nil {
			return nil, &MissingArtifactError{Module: spec.Name, Type: inputType}
		}
		resolved[inputType] = env
		available[inputType] = env
	}
	return resolved, nil
}

// applyAdapter bridges targetType from an available source through the first
// matching adapter. Adapters never chain: the source must already exist in
// memory or the store. Returns nil when no adapter applies.
func (r *Runner) applyAdapter(ctx context.Context, targetType artifact.Type, req Request, available map[artifact.Type]*artifact.Envelope) (*artifact.Envelope, error) {
	if r.adapters == nil {
		return nil, nil
	}
	has := func(t artifact.Type) bool {
		if available[t] != nil {
			return true
		}
		env, err := r.store.GetLatestByType(t)
		return err == nil && env != nil
	}
	spec := r.adapters.FindAdapter(targetType, has)
	if spec == nil {
		return nil, nil
	}

	source := available[spec.SourceType]
	if source == nil {
		stored, err := r.store.GetLatestByType(spec.SourceType)
		if err != nil {
			return nil, err
		}
		source = stored
	}
	if source == nil {
		return nil, nil
	}

	params := req.AdapterParams[spec.Name]
	fingerprint, err := artifact.ComputeFingerprint(spec.Name, spec.Version, params, map[artifact.Type]*artifact.Envelope{spec.SourceType: source})
	if err != nil {
		return nil, fmt.Errorf("fingerprint adapter %s: %w", spec.Name, err)
	}

	logger := logging.WithContext(ctx, r.logger)

	cached, err := r.store.FindByProducerFingerprint(spec.Name, fingerprint)
	if err != nil {
		return nil, err
	}
	for _, env := range cached {
		if env.Type == targetType {
			available[targetType] = env
			logger.Info("adapter cache hit",
				logging.String(logging.FieldEventType, "adapter_cache_hit"),
				logging.String("adapter", spec.Name),
				logging.String(logging.FieldArtifactType, targetType),
			)
			return env, nil
		}
	}

	logger.Info("adapter started",
		logging.String(logging.FieldEventType, "adapter_start"),
		logging.String("adapter", spec.Name),
		logging.String(logging.FieldArtifactType, targetType),
	)

	ac := &registry.AdapterContext{
		Source:   source,
		Params:   params,
		Store:    r.store,
		RunID:    r.store.RunID(),
		Progress: req.Progress,
	}
	output, err := spec.Adapter.Execute(ctx, ac)
	if err != nil {
		return nil, fmt.Errorf("adapter %s: %w", spec.Name, err)
	}

	paramsHash, err := artifact.HashParams(params)
	if err != nil {
		return nil, fmt.Errorf("hash adapter params %s: %w", spec.Name, err)
	}
	producer := artifact.Producer{Name: spec.Name, Version: spec.Version, ParamsHash: paramsHash}
	env, err := artifact.Coerce(targetType, output, producer, fingerprint, []string{source.ArtifactID})
	if err != nil {
		return nil, fmt.Errorf("adapter %s output: %w", spec.Name, err)
	}
	if err := r.store.WriteArtifact(env); err != nil {
		return nil, err
	}
	available[targetType] = env
	return env, nil
}

// cachedOutputs returns the cached artifacts for this fingerprint when every
// declared output type is present among them; otherwise nil.
func (r *Runner) cachedOutputs(spec *registry.ModuleSpec, fingerprint string) (map[artifact.Type]*artifact.Envelope, error) {
	cached, err := r.store.FindByProducerFingerprint(spec.Name, fingerprint)
	if err != nil {
		return nil, err
	}
	if len(cached) == 0 {
		return nil, nil
	}
	byType := make(map[artifact.Type]*artifact.Envelope, len(cached))
	for _, env := range cached {
		byType[env.Type] = env
	}
	for _, out := range spec.Outputs {
		if byType[out] == nil {
			return nil, nil
		}
	}
	return byType, nil
}

// storeOutputs validates the module contract, wraps each output in an
// envelope stamped with the step fingerprint, and persists them.
func (r *Runner) storeOutputs(spec *registry.ModuleSpec, outputs map[artifact.Type]any, inputs map[artifact.Type]*artifact.Envelope, params map[string]any, fingerprint string) (map[artifact.Type]*artifact.Envelope, error) {
	if outputs == nil {
		return nil, &ContractViolationError{Module: spec.Name}
	}

	paramsHash, err := artifact.HashParams(params)
	if err != nil {
		return nil, fmt.Errorf("hash module params %s: %w", spec.Name, err)
	}
	producer := artifact.Producer{Name: spec.Name, Version: spec.Version, ParamsHash: paramsHash}

	inputTypes := make([]artifact.Type, 0, len(inputs))
	for t := range inputs {
		inputTypes = append(inputTypes, t)
	}
	sort.Strings(inputTypes)
	dependsOn := make([]string, 0, len(inputs))
	for _, t := range inputTypes {
		dependsOn = append(dependsOn, inputs[t].ArtifactID)
	}

	produced := make(map[artifact.Type]*artifact.Envelope, len(spec.Outputs))
	for _, outputType := range spec.Outputs {
		raw, ok := outputs[outputType]
		if !ok {
			return nil, &ContractViolationError{Module: spec.Name, Output: outputType}
		}
		env, err := artifact.Coerce(outputType, raw, producer, fingerprint, dependsOn)
		if err != nil {
			return nil, fmt.Errorf("module %s output: %w", spec.Name, err)
		}
		if err := r.store.WriteArtifact(env); err != nil {
			return nil, err
		}
		produced[outputType] = env
	}
	return produced, nil
}

func mergeParams(defaults, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
