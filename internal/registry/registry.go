package registry

import (
	"loom/internal/artifact"
)

// ModuleRegistry is an in-memory catalog of module specs. Registration order
// is preserved; the planner iterates modules deterministically.
type ModuleRegistry struct {
	modules map[string]*ModuleSpec
	order   []string
}

// NewModuleRegistry returns an empty module catalog.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{modules: make(map[string]*ModuleSpec)}
}

// Register adds or replaces a module spec by name.
func (r *ModuleRegistry) Register(spec *ModuleSpec) {
	if spec == nil || spec.Name == "" {
		return
	}
	if _, exists := r.modules[spec.Name]; !exists {
		r.order = append(r.order, spec.Name)
	}
	r.modules[spec.Name] = spec
}

// RegisterAll registers every provided spec in order.
func (r *ModuleRegistry) RegisterAll(specs ...*ModuleSpec) {
	for _, spec := range specs {
		r.Register(spec)
	}
}

// Get returns the module registered under name.
func (r *ModuleRegistry) Get(name string) (*ModuleSpec, bool) {
	spec, ok := r.modules[name]
	return spec, ok
}

// List returns all modules in registration order.
func (r *ModuleRegistry) List() []*ModuleSpec {
	specs := make([]*ModuleSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.modules[name])
	}
	return specs
}

// ByOutput returns every module that produces the given artifact type.
func (r *ModuleRegistry) ByOutput(artifactType artifact.Type) []*ModuleSpec {
	var specs []*ModuleSpec
	for _, name := range r.order {
		spec := r.modules[name]
		for _, out := range spec.Outputs {
			if out == artifactType {
				specs = append(specs, spec)
				break
			}
		}
	}
	return specs
}

// AdapterRegistry is an in-memory catalog of adapter specs grouped by target
// type. Within a target, registration order is the priority order.
type AdapterRegistry struct {
	byTarget map[artifact.Type][]*AdapterSpec
}

// NewAdapterRegistry returns an empty adapter catalog.
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{byTarget: make(map[artifact.Type][]*AdapterSpec)}
}

// Register appends an adapter spec under its target type.
func (r *AdapterRegistry) Register(spec *AdapterSpec) {
	if spec == nil {
		return
	}
	r.byTarget[spec.TargetType] = append(r.byTarget[spec.TargetType], spec)
}

// RegisterAll registers every provided spec in order.
func (r *AdapterRegistry) RegisterAll(specs ...*AdapterSpec) {
	for _, spec := range specs {
		r.Register(spec)
	}
}

// FindAdapter returns the first registered adapter targeting targetType whose
// source type satisfies the availability predicate, or nil when none matches.
func (r *AdapterRegistry) FindAdapter(targetType artifact.Type, available func(artifact.Type) bool) *AdapterSpec {
	for _, spec := range r.byTarget[targetType] {
		if available(spec.SourceType) {
			return spec
		}
	}
	return nil
}
