package runner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"loom/internal/artifact"
	"loom/internal/planner"
	"loom/internal/registry"
	"loom/internal/runner"
	"loom/internal/store"
)

type countingModule struct {
	calls   int
	outputs func(mc *registry.ModuleContext) map[artifact.Type]any
}

func (m *countingModule) Execute(_ context.Context, mc *registry.ModuleContext) (map[artifact.Type]any, error) {
	m.calls++
	if m.outputs == nil {
		return map[artifact.Type]any{}, nil
	}
	return m.outputs(mc), nil
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "run-1"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunProducesGoalAndPersistsEnvelope(t *testing.T) {
	s := openStore(t)
	mod := &countingModule{outputs: func(*registry.ModuleContext) map[artifact.Type]any {
		return map[artifact.Type]any{"X": map[string]any{"v": 1}}
	}}
	modules := registry.NewModuleRegistry()
	modules.Register(&registry.ModuleSpec{Name: "m1", Version: "1", Outputs: []artifact.Type{"X"}, Module: mod})

	r := runner.New(modules, registry.NewAdapterRegistry(), s)
	results, err := r.Run(context.Background(), runner.Request{Goals: []artifact.Type{"X"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	env := results["X"]
	if env == nil || env.Type != "X" {
		t.Fatalf("unexpected result: %#v", env)
	}
	payload, _ := env.Payload.(map[string]any)
	if payload["v"] != 1 {
		t.Fatalf("unexpected payload: %#v", env.Payload)
	}

	onDisk := filepath.Join(s.RunDir(), "artifacts", env.ArtifactID, "envelope.json")
	if _, err := os.Stat(onDisk); err != nil {
		t.Fatalf("expected envelope.json on disk: %v", err)
	}
}

func TestRunMemoizesAcrossInvocations(t *testing.T) {
	s := openStore(t)
	mod := &countingModule{outputs: func(*registry.ModuleContext) map[artifact.Type]any {
		return map[artifact.Type]any{"X": map[string]any{"v": 1}}
	}}
	modules := registry.NewModuleRegistry()
	modules.Register(&registry.ModuleSpec{Name: "m1", Version: "1", Outputs: []artifact.Type{"X"}, Module: mod})
	r := runner.New(modules, registry.NewAdapterRegistry(), s)

	first, err := r.Run(context.Background(), runner.Request{Goals: []artifact.Type{"X"}})
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := r.Run(context.Background(), runner.Request{Goals: []artifact.Type{"X"}})
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if mod.calls != 1 {
		t.Fatalf("expected exactly one execution, got %d", mod.calls)
	}
	if first["X"].Fingerprint != second["X"].Fingerprint {
		t.Fatal("expected identical fingerprints across runs")
	}
}

func TestRunInvalidatesOnVersionBump(t *testing.T) {
	s := openStore(t)
	mod := &countingModule{outputs: func(*registry.ModuleContext) map[artifact.Type]any {
		return map[artifact.Type]any{"X": map[string]any{"v": 1}}
	}}
	modules := registry.NewModuleRegistry()
	spec := &registry.ModuleSpec{Name: "m1", Version: "1", Outputs: []artifact.Type{"X"}, Module: mod}
	modules.Register(spec)
	r := runner.New(modules, registry.NewAdapterRegistry(), s)

	if _, err := r.Run(context.Background(), runner.Request{Goals: []artifact.Type{"X"}}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	spec.Version = "2"
	if _, err := r.Run(context.Background(), runner.Request{Goals: []artifact.Type{"X"}}); err != nil {
		t.Fatalf("Run failed after version bump: %v", err)
	}
	if mod.calls != 2 {
		t.Fatalf("expected re-execution after version bump, got %d calls", mod.calls)
	}
}

func TestRunInvalidatesOnParamChange(t *testing.T) {
	s := openStore(t)
	mod := &countingModule{outputs: func(*registry.ModuleContext) map[artifact.Type]any {
		return map[artifact.Type]any{"X": map[string]any{"v": 1}}
	}}
	modules := registry.NewModuleRegistry()
	modules.Register(&registry.ModuleSpec{
		Name: "m1", Version: "1", Outputs: []artifact.Type{"X"}, Module: mod,
		DefaultParams: map[string]any{"threshold": 1},
	})
	r := runner.New(modules, registry.NewAdapterRegistry(), s)

	if _, err := r.Run(context.Background(), runner.Request{Goals: []artifact.Type{"X"}}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	override := runner.Request{
		Goals:        []artifact.Type{"X"},
		ModuleParams: map[string]map[string]any{"m1": {"threshold": 2}},
	}
	if _, err := r.Run(context.Background(), override); err != nil {
		t.Fatalf("Run with override failed: %v", err)
	}
	if mod.calls != 2 {
		t.Fatalf("expected re-execution after param change, got %d calls", mod.calls)
	}
}

func TestRunInvalidatesOnUpstreamChange(t *testing.T) {
	s := openStore(t)
	up := &countingModule{outputs: func(*registry.ModuleContext) map[artifact.Type]any {
		return map[artifact.Type]any{"A": map[string]any{"v": 1}}
	}}
	down := &countingModule{outputs: func(*registry.ModuleContext) map[artifact.Type]any {
		return map[artifact.Type]any{"B": map[string]any{"v": 2}}
	}}
	modules := registry.NewModuleRegistry()
	upSpec := &registry.ModuleSpec{Name: "up", Version: "1", Outputs: []artifact.Type{"A"}, Module: up}
	modules.RegisterAll(
		upSpec,
		&registry.ModuleSpec{Name: "down", Version: "1", Inputs: []artifact.Type{"A"}, Outputs: []artifact.Type{"B"}, Module: down},
	)
	r := runner.New(modules, registry.NewAdapterRegistry(), s)

	if _, err := r.Run(context.Background(), runner.Request{Goals: []artifact.Type{"B"}}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Bump the upstream version: its new output fingerprint must cascade into
	// the downstream cache key.
	upSpec.Version = "2"
	if _, err := r.Run(context.Background(), runner.Request{Goals: []artifact.Type{"B"}}); err != nil {
		t.Fatalf("Run failed after upstream bump: %v", err)
	}
	if up.calls != 2 || down.calls != 2 {
		t.Fatalf("expected cascade re-execution, got up=%d down=%d", up.calls, down.calls)
	}
}

func TestRunSeedsCollapseAcrossRuns(t *testing.T) {
	s := openStore(t)
	mod := &countingModule{outputs: func(mc *registry.ModuleContext) map[artifact.Type]any {
		return map[artifact.Type]any{"X": mc.Inputs["Seed"].Payload}
	}}
	modules := registry.NewModuleRegistry()
	modules.Register(&registry.ModuleSpec{Name: "m1", Version: "1", Inputs: []artifact.Type{"Seed"}, Outputs: []artifact.Type{"X"}, Module: mod})
	r := runner.New(modules, registry.NewAdapterRegistry(), s)

	req := runner.Request{
		Goals:        []artifact.Type{"X"},
		SeedPayloads: map[artifact.Type]any{"Seed": map[string]any{"path": "/tmp/v.mp4"}},
	}
	if _, err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	ids := s.ListIDsByType("Seed")
	if len(ids) != 1 {
		t.Fatalf("expected one collapsed seed artifact, got %v", ids)
	}
	if mod.calls != 1 {
		t.Fatalf("expected memoized module with stable seed, got %d calls", mod.calls)
	}
}

func TestRunAdapterBridging(t *testing.T) {
	s := openStore(t)
	adapterCalls := 0
	consume := &countingModule{outputs: func(*registry.ModuleContext) map[artifact.Type]any {
		return map[artifact.Type]any{"C": map[string]any{"ok": true}}
	}}
	modules := registry.NewModuleRegistry()
	modules.Register(&registry.ModuleSpec{Name: "consume", Version: "1", Inputs: []artifact.Type{"B"}, Outputs: []artifact.Type{"C"}, Module: consume})

	adapters := registry.NewAdapterRegistry()
	adapters.Register(&registry.AdapterSpec{
		Name: "a_to_b", Version: "1", SourceType: "A", TargetType: "B",
		Adapter: registry.AdapterFunc(func(_ context.Context, ac *registry.AdapterContext) (any, error) {
			adapterCalls++
			return map[string]any{"from": ac.Source.Type}, nil
		}),
	})

	r := runner.New(modules, adapters, s)
	req := runner.Request{
		Goals:        []artifact.Type{"C"},
		SeedPayloads: map[artifact.Type]any{"A": map[string]any{"v": 1}},
	}
	results, err := r.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if results["C"] == nil {
		t.Fatal("expected goal artifact")
	}

	bridged, err := s.GetLatestByType("B")
	if err != nil {
		t.Fatalf("GetLatestByType failed: %v", err)
	}
	if bridged == nil {
		t.Fatal("expected bridged artifact persisted")
	}
	seed, err := s.GetLatestByType("A")
	if err != nil {
		t.Fatalf("GetLatestByType failed: %v", err)
	}
	if len(bridged.DependsOn) != 1 || bridged.DependsOn[0] != seed.ArtifactID {
		t.Fatalf("expected bridged artifact to depend on source, got %v", bridged.DependsOn)
	}

	// Re-running must cache-hit the adapter as well.
	if _, err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if adapterCalls != 1 {
		t.Fatalf("expected adapter memoization, got %d calls", adapterCalls)
	}
}

func TestRunUnreachableGoalSurfacesPlanError(t *testing.T) {
	s := openStore(t)
	modules := registry.NewModuleRegistry()
	modules.Register(&registry.ModuleSpec{
		Name: "consume", Version: "1", Inputs: []artifact.Type{"B"}, Outputs: []artifact.Type{"C"},
		Module: &countingModule{},
	})
	r := runner.New(modules, registry.NewAdapterRegistry(), s)

	_, err := r.Run(context.Background(), runner.Request{Goals: []artifact.Type{"C"}})
	var planErr *planner.PlanError
	if !errors.As(err, &planErr) {
		t.Fatalf("expected PlanError, got %v", err)
	}
}

func TestRunContractViolationMissingOutput(t *testing.T) {
	s := openStore(t)
	mod := &countingModule{outputs: func(*registry.ModuleContext) map[artifact.Type]any {
		return map[artifact.Type]any{"X": map[string]any{"v": 1}}
	}}
	modules := registry.NewModuleRegistry()
	modules.Register(&registry.ModuleSpec{Name: "m1", Version: "1", Outputs: []artifact.Type{"X", "Y"}, Module: mod})
	r := runner.New(modules, registry.NewAdapterRegistry(), s)

	_, err := r.Run(context.Background(), runner.Request{Goals: []artifact.Type{"Y"}})
	var violation *runner.ContractViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ContractViolationError, got %v", err)
	}
	if violation.Module != "m1" || violation.Output != "Y" {
		t.Fatalf("unexpected violation detail: %#v", violation)
	}
}

func TestRunContractViolationNilOutputs(t *testing.T) {
	s := openStore(t)
	modules := registry.NewModuleRegistry()
	modules.Register(&registry.ModuleSpec{
		Name: "m1", Version: "1", Outputs: []artifact.Type{"X"},
		Module: registry.ModuleFunc(func(context.Context, *registry.ModuleContext) (map[artifact.Type]any, error) {
			return nil, nil
		}),
	})
	r := runner.New(modules, registry.NewAdapterRegistry(), s)

	_, err := r.Run(context.Background(), runner.Request{Goals: []artifact.Type{"X"}})
	var violation *runner.ContractViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ContractViolationError, got %v", err)
	}
	if violation.Module != "m1" || violation.Output != "" {
		t.Fatalf("unexpected violation detail: %#v", violation)
	}
}

func TestRunFailureThenResume(t *testing.T) {
	s := openStore(t)
	up := &countingModule{outputs: func(*registry.ModuleContext) map[artifact.Type]any {
		return map[artifact.Type]any{"A": map[string]any{"v": 1}}
	}}
	failing := true
	down := registry.ModuleFunc(func(context.Context, *registry.ModuleContext) (map[artifact.Type]any, error) {
		if failing {
			return nil, errors.New("transient crash")
		}
		return map[artifact.Type]any{"B": map[string]any{"v": 2}}, nil
	})
	modules := registry.NewModuleRegistry()
	modules.RegisterAll(
		&registry.ModuleSpec{Name: "up", Version: "1", Outputs: []artifact.Type{"A"}, Module: up},
		&registry.ModuleSpec{Name: "down", Version: "1", Inputs: []artifact.Type{"A"}, Outputs: []artifact.Type{"B"}, Module: down},
	)
	r := runner.New(modules, registry.NewAdapterRegistry(), s)

	if _, err := r.Run(context.Background(), runner.Request{Goals: []artifact.Type{"B"}}); err == nil {
		t.Fatal("expected first run to fail")
	}

	failing = false
	if _, err := r.Run(context.Background(), runner.Request{Goals: []artifact.Type{"B"}}); err != nil {
		t.Fatalf("resume run failed: %v", err)
	}
	if up.calls != 1 {
		t.Fatalf("expected upstream to cache-hit on resume, got %d calls", up.calls)
	}
}

func TestErrorMessages(t *testing.T) {
	missing := &runner.MissingArtifactError{Module: "m1", Type: "B"}
	if missing.Error() != "missing required artifact: B for module m1" {
		t.Fatalf("unexpected message: %s", missing.Error())
	}
	goal := &runner.GoalNotProducedError{Type: "X"}
	if goal.Error() != "goal not produced: X" {
		t.Fatalf("unexpected message: %s", goal.Error())
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	s := openStore(t)
	mod := &countingModule{outputs: func(*registry.ModuleContext) map[artifact.Type]any {
		return map[artifact.Type]any{"X": map[string]any{"v": 1}}
	}}
	modules := registry.NewModuleRegistry()
	modules.Register(&registry.ModuleSpec{Name: "m1", Version: "1", Outputs: []artifact.Type{"X"}, Module: mod})
	r := runner.New(modules, registry.NewAdapterRegistry(), s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx, runner.Request{Goals: []artifact.Type{"X"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if mod.calls != 0 {
		t.Fatal("expected no execution after cancellation")
	}
}
