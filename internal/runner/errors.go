package runner

import (
	"fmt"

	"loom/internal/artifact"
)

// MissingArtifactError reports an input type that could not be resolved from
// memory, the store, or an adapter for a specific module.
type MissingArtifactError struct {
	Module string
	Type   artifact.Type
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing required artifact: %s for module %s", e.Type, e.Module)
}

// ContractViolationError reports a module that returned no outputs or omitted
// a declared output. Output is empty when nothing at all was returned.
type ContractViolationError struct {
	Module string
	Output artifact.Type
}

func (e *ContractViolationError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("module %s returned no outputs", e.Module)
	}
	return fmt.Sprintf("module %s missing output: %s", e.Module, e.Output)
}

// GoalNotProducedError reports a requested goal type absent from both memory
// and the store after the plan executed.
type GoalNotProducedError struct {
	Type artifact.Type
}

func (e *GoalNotProducedError) Error() string {
	return fmt.Sprintf("goal not produced: %s", e.Type)
}
