package planner_test

import (
	"context"
	"errors"
	"testing"

	"loom/internal/artifact"
	"loom/internal/planner"
	"loom/internal/registry"
)

func module(name string, inputs, outputs []artifact.Type) *registry.ModuleSpec {
	return &registry.ModuleSpec{
		Name:    name,
		Version: "1",
		Inputs:  inputs,
		Outputs: outputs,
		Module: registry.ModuleFunc(func(context.Context, *registry.ModuleContext) (map[artifact.Type]any, error) {
			return nil, nil
		}),
	}
}

func adapter(name string, source, target artifact.Type) *registry.AdapterSpec {
	return &registry.AdapterSpec{
		Name:       name,
		Version:    "1",
		SourceType: source,
		TargetType: target,
		Adapter: registry.AdapterFunc(func(context.Context, *registry.AdapterContext) (any, error) {
			return nil, nil
		}),
	}
}

func names(steps []planner.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Module.Name
	}
	return out
}

func TestBuildOrdersChain(t *testing.T) {
	modules := registry.NewModuleRegistry()
	// Registered out of dependency order on purpose.
	modules.RegisterAll(
		module("consume", []artifact.Type{"B"}, []artifact.Type{"C"}),
		module("produce", []artifact.Type{"A"}, []artifact.Type{"B"}),
	)

	steps, err := planner.Build([]artifact.Type{"C"}, modules, nil, []artifact.Type{"A"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got := names(steps)
	if len(got) != 2 || got[0] != "produce" || got[1] != "consume" {
		t.Fatalf("unexpected plan order: %v", got)
	}
}

func TestBuildSkipsRedundantModules(t *testing.T) {
	modules := registry.NewModuleRegistry()
	modules.RegisterAll(
		module("dup", nil, []artifact.Type{"A"}),
		module("goal", []artifact.Type{"A"}, []artifact.Type{"B"}),
	)

	steps, err := planner.Build([]artifact.Type{"B"}, modules, nil, []artifact.Type{"A"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got := names(steps)
	if len(got) != 1 || got[0] != "goal" {
		t.Fatalf("expected redundant producer to be dropped, got %v", got)
	}
}

func TestBuildGoalAlreadyAvailable(t *testing.T) {
	modules := registry.NewModuleRegistry()
	modules.Register(module("produce", nil, []artifact.Type{"X"}))

	steps, err := planner.Build([]artifact.Type{"X"}, modules, nil, []artifact.Type{"X"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(steps) != 0 {
		t.Fatalf("expected empty plan for satisfied goal, got %v", names(steps))
	}
}

func TestBuildUnreachableGoal(t *testing.T) {
	modules := registry.NewModuleRegistry()
	modules.Register(module("other", nil, []artifact.Type{"A"}))

	_, err := planner.Build([]artifact.Type{"Z"}, modules, nil, nil)
	if err == nil {
		t.Fatal("expected PlanError")
	}
	var planErr *planner.PlanError
	if !errors.As(err, &planErr) {
		t.Fatalf("expected PlanError, got %T", err)
	}
	if len(planErr.Missing) != 1 || planErr.Missing[0] != "Z" {
		t.Fatalf("unexpected missing types: %v", planErr.Missing)
	}
}

func TestBuildBridgesInputThroughAdapter(t *testing.T) {
	modules := registry.NewModuleRegistry()
	modules.Register(module("consume", []artifact.Type{"B"}, []artifact.Type{"C"}))
	adapters := registry.NewAdapterRegistry()
	adapters.Register(adapter("a_to_b", "A", "B"))

	// Without the adapter the goal is unreachable.
	if _, err := planner.Build([]artifact.Type{"C"}, modules, nil, []artifact.Type{"A"}); err == nil {
		t.Fatal("expected PlanError without adapter registry")
	}

	steps, err := planner.Build([]artifact.Type{"C"}, modules, adapters, []artifact.Type{"A"})
	if err != nil {
		t.Fatalf("Build failed with adapter bridging: %v", err)
	}
	got := names(steps)
	if len(got) != 1 || got[0] != "consume" {
		t.Fatalf("unexpected plan: %v", got)
	}
}

func TestBuildMultiOutputSatisfiesSeveralGoals(t *testing.T) {
	modules := registry.NewModuleRegistry()
	modules.Register(module("multi", nil, []artifact.Type{"X", "Y"}))

	steps, err := planner.Build([]artifact.Type{"X", "Y"}, modules, nil, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("expected one step to satisfy both goals, got %v", names(steps))
	}
}
