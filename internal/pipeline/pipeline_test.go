package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"loom/internal/artifact"
	"loom/internal/ledger"
	"loom/internal/pipeline"
	"loom/internal/registry"
	"loom/internal/store"
	"loom/internal/testsupport"
)

func singleModuleRegistry(outputs map[artifact.Type]any, execErr error) *registry.ModuleRegistry {
	modules := registry.NewModuleRegistry()
	modules.Register(&registry.ModuleSpec{
		Name:    "produce",
		Version: "1",
		Outputs: []artifact.Type{"X"},
		Module: registry.ModuleFunc(func(context.Context, *registry.ModuleContext) (map[artifact.Type]any, error) {
			if execErr != nil {
				return nil, execErr
			}
			return outputs, nil
		}),
	})
	return modules
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	modules := singleModuleRegistry(map[artifact.Type]any{"X": map[string]any{"v": 1}}, nil)

	p := pipeline.New(cfg, modules, registry.NewAdapterRegistry())
	result, err := p.Run(context.Background(), pipeline.Request{
		RunID: "run-1",
		Goals: []artifact.Type{"X"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.RunDir != cfg.RunDir("run-1") {
		t.Fatalf("unexpected run dir: %s", result.RunDir)
	}
	if result.Artifacts["X"] == nil {
		t.Fatal("expected goal artifact")
	}

	// The run directory is self-describing: meta plus progress history.
	s, err := store.OpenReadOnly(result.RunDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	meta, err := s.GetLatestByType(artifact.KindRunMeta)
	if err != nil || meta == nil {
		t.Fatalf("expected run meta artifact, err=%v", err)
	}
	if len(s.ListIDsByType(artifact.KindProgress)) < 2 {
		t.Fatal("expected start and done progress events")
	}

	// The ledger has the completed row.
	led, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer led.Close()
	run, err := led.GetByRunID(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if run == nil || run.Status != ledger.StatusCompleted {
		t.Fatalf("unexpected ledger state: %+v", run)
	}
	if run.ArtifactCount == 0 {
		t.Fatal("expected artifact count recorded")
	}
}

func TestRunFailureRecordedInLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	modules := singleModuleRegistry(nil, errors.New("boom"))

	p := pipeline.New(cfg, modules, registry.NewAdapterRegistry())
	_, err := p.Run(context.Background(), pipeline.Request{RunID: "run-1", Goals: []artifact.Type{"X"}})
	if err == nil {
		t.Fatal("expected run failure")
	}

	led, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer led.Close()
	run, err := led.GetByRunID(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if run == nil || run.Status != ledger.StatusFailed || run.ErrorMessage == "" {
		t.Fatalf("unexpected ledger state: %+v", run)
	}
}

func TestRunResumeReusesLedgerRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fail := errors.New("boom")
	calls := 0
	modules := registry.NewModuleRegistry()
	modules.Register(&registry.ModuleSpec{
		Name:    "produce",
		Version: "1",
		Outputs: []artifact.Type{"X"},
		Module: registry.ModuleFunc(func(context.Context, *registry.ModuleContext) (map[artifact.Type]any, error) {
			calls++
			if calls == 1 {
				return nil, fail
			}
			return map[artifact.Type]any{"X": map[string]any{"v": 1}}, nil
		}),
	})

	p := pipeline.New(cfg, modules, registry.NewAdapterRegistry())
	req := pipeline.Request{RunID: "run-1", Goals: []artifact.Type{"X"}}
	if _, err := p.Run(context.Background(), req); !errors.Is(err, fail) {
		t.Fatalf("expected first run to fail with module error, got %v", err)
	}
	if _, err := p.Run(context.Background(), req); err != nil {
		t.Fatalf("resume run failed: %v", err)
	}

	led, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer led.Close()
	runs, err := led.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != ledger.StatusCompleted {
		t.Fatalf("expected one completed ledger row, got %+v", runs)
	}
}

func TestRunWithLedgerDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLedgerDisabled())
	modules := singleModuleRegistry(map[artifact.Type]any{"X": map[string]any{"v": 1}}, nil)

	p := pipeline.New(cfg, modules, registry.NewAdapterRegistry())
	if _, err := p.Run(context.Background(), pipeline.Request{RunID: "run-1", Goals: []artifact.Type{"X"}}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestRunForwardsProgressCallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	modules := singleModuleRegistry(map[artifact.Type]any{"X": map[string]any{"v": 1}}, nil)

	var mu sync.Mutex
	var stages []string
	cb := func(stage string, current, total int, message string) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, stage)
	}

	p := pipeline.New(cfg, modules, registry.NewAdapterRegistry(), pipeline.WithProgressCallback(cb))
	if _, err := p.Run(context.Background(), pipeline.Request{RunID: "run-1", Goals: []artifact.Type{"X"}}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(stages) < 2 || stages[0] != "run" {
		t.Fatalf("unexpected stages: %v", stages)
	}
}

func TestRunGeneratesRunID(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLedgerDisabled())
	modules := singleModuleRegistry(map[artifact.Type]any{"X": map[string]any{"v": 1}}, nil)

	p := pipeline.New(cfg, modules, registry.NewAdapterRegistry())
	result, err := p.Run(context.Background(), pipeline.Request{Goals: []artifact.Type{"X"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.RunID == "" {
		t.Fatal("expected generated run id")
	}
	if result.RunDir != cfg.RunDir(result.RunID) {
		t.Fatalf("run dir does not match run id: %s", result.RunDir)
	}
}
