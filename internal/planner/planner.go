package planner

import (
	"fmt"
	"sort"
	"strings"

	"loom/internal/artifact"
	"loom/internal/registry"
)

// Step wraps one module scheduled to run, in dependency order.
type Step struct {
	Module *registry.ModuleSpec
}

// PlanError reports goal types unreachable from the registered modules.
type PlanError struct {
	Missing   []artifact.Type
	Available []artifact.Type
}

func (e *PlanError) Error() string {
	return fmt.Sprintf(
		"unreachable goals: missing types: %s; available types: %s",
		joinSorted(e.Missing), joinSorted(e.Available),
	)
}

// Build produces an ordered plan sufficient to reach every goal type from the
// available set, or a PlanError when the fixpoint leaves goals unsatisfied.
// The adapter registry may be nil, in which case only direct module-input
// satisfaction is considered.
func Build(
	goals []artifact.Type,
	modules *registry.ModuleRegistry,
	adapters *registry.AdapterRegistry,
	availableTypes []artifact.Type,
) ([]Step, error) {
	available := make(map[artifact.Type]struct{}, len(availableTypes))
	for _, t := range availableTypes {
		available[t] = struct{}{}
	}
	remaining := make(map[artifact.Type]struct{}, len(goals))
	for _, t := range goals {
		if _, ok := available[t]; !ok {
			remaining[t] = struct{}{}
		}
	}

	has := func(t artifact.Type) bool {
		_, ok := available[t]
		return ok
	}
	// satisfiable reports whether an input is either directly available or
	// one adapter hop away; bridged types join the available set because the
	// runner materializes them during input resolution.
	satisfiable := func(t artifact.Type) (artifact.Type, bool) {
		if has(t) {
			return "", true
		}
		if adapters != nil {
			if spec := adapters.FindAdapter(t, has); spec != nil {
				return t, true
			}
		}
		return "", false
	}

	pending := modules.List()
	var steps []Step

	for len(remaining) > 0 {
		progressed := false
		next := pending[:0]
		for _, spec := range pending {
			var bridged []artifact.Type
			inputsOK := true
			for _, in := range spec.Inputs {
				bridgedType, ok := satisfiable(in)
				if !ok {
					inputsOK = false
					break
				}
				if bridgedType != "" {
					bridged = append(bridged, bridgedType)
				}
			}
			if !inputsOK {
				next = append(next, spec)
				continue
			}

			newOutputs := false
			for _, out := range spec.Outputs {
				if !has(out) {
					newOutputs = true
					break
				}
			}
			if !newOutputs {
				// Redundant given the current available set; drop without
				// scheduling.
				continue
			}

			steps = append(steps, Step{Module: spec})
			for _, t := range bridged {
				available[t] = struct{}{}
			}
			for _, out := range spec.Outputs {
				available[out] = struct{}{}
				delete(remaining, out)
			}
			progressed = true
		}
		pending = next
		if !progressed {
			break
		}
	}

	if len(remaining) > 0 {
		missing := make([]artifact.Type, 0, len(remaining))
		for t := range remaining {
			missing = append(missing, t)
		}
		avail := make([]artifact.Type, 0, len(available))
		for t := range available {
			avail = append(avail, t)
		}
		return nil, &PlanError{Missing: missing, Available: avail}
	}

	return steps, nil
}

func joinSorted(types []artifact.Type) string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
