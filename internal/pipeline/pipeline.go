package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"loom/internal/artifact"
	"loom/internal/config"
	"loom/internal/ledger"
	"loom/internal/logging"
	"loom/internal/preflight"
	"loom/internal/progress"
	"loom/internal/registry"
	"loom/internal/runner"
	"loom/internal/services"
	"loom/internal/stablejson"
	"loom/internal/store"
)

// Pipeline executes runs against one workspace configuration.
type Pipeline struct {
	cfg      *config.Config
	modules  *registry.ModuleRegistry
	adapters *registry.AdapterRegistry
	logger   *slog.Logger
	callback registry.ProgressFunc
}

// Option customizes pipeline construction.
type Option func(*Pipeline)

// WithLogger attaches a logger for run lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProgressCallback forwards every progress event to the given callback in
// addition to persisting it.
func WithProgressCallback(cb registry.ProgressFunc) Option {
	return func(p *Pipeline) {
		p.callback = cb
	}
}

// New constructs a pipeline over the given registries.
func New(cfg *config.Config, modules *registry.ModuleRegistry, adapters *registry.AdapterRegistry, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		modules:  modules,
		adapters: adapters,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Request describes one pipeline run. An empty RunID gets a generated one.
type Request struct {
	RunID         string
	Goals         []artifact.Type
	SeedPayloads  map[artifact.Type]any
	SeedArtifacts []*artifact.Envelope
	ModuleParams  map[string]map[string]any
	AdapterParams map[string]map[string]any
}

// Result reports a finished run.
type Result struct {
	RunID     string
	RunDir    string
	Artifacts map[artifact.Type]*artifact.Envelope
}

// Run executes the request end to end. Re-running with the same RunID resumes
// against the existing run directory, cache-hitting completed work.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	runID := req.RunID
	if runID == "" {
		runID = artifact.NewID()
	}
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, p.logger)

	if err := p.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "prepare", "ensure directories", err)
	}
	if failed := preflight.Failed(preflight.RunAll(p.cfg)); failed != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "preflight", fmt.Sprintf("%s: %s", failed.Name, failed.Detail), nil)
	}

	runDir := p.cfg.RunDir(runID)
	st, err := store.Open(runDir, store.WithLogger(p.logger))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "open store", runDir, err)
	}
	defer func() { _ = st.Close() }()

	var led *ledger.Store
	if p.cfg.Ledger.Enabled {
		led, err = ledger.Open(p.cfg.LedgerPath())
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "open ledger", p.cfg.LedgerPath(), err)
		}
		defer func() { _ = led.Close() }()

		existing, err := led.GetByRunID(ctx, runID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			if _, err := led.Begin(ctx, runID, req.Goals); err != nil {
				return nil, err
			}
		}
		if err := led.MarkRunning(ctx, runID); err != nil {
			return nil, err
		}
	}

	emitter := progress.NewEmitter(st, "pipeline")
	report := p.fanOut(emitter)

	if err := p.writeRunMeta(st, runID, req.Goals); err != nil {
		return nil, err
	}

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Any("goals", req.Goals),
	)
	report("run", 0, 1, "start")

	eng := runner.New(p.modules, p.adapters, st, runner.WithLogger(p.logger))
	artifacts, runErr := eng.Run(ctx, runner.Request{
		Goals:         req.Goals,
		SeedPayloads:  req.SeedPayloads,
		SeedArtifacts: req.SeedArtifacts,
		ModuleParams:  req.ModuleParams,
		AdapterParams: req.AdapterParams,
		Progress:      report,
	})
	if runErr != nil {
		logger.Error("run failed",
			logging.String(logging.FieldEventType, "run_failure"),
			logging.Error(runErr),
		)
		_, _ = emitter.EmitStatus("run", 1, 1, runErr.Error(), progress.StatusFailed, nil)
		if led != nil {
			if err := led.Fail(ctx, runID, runErr.Error()); err != nil {
				logger.Error("ledger update failed", logging.Error(err))
			}
		}
		return nil, runErr
	}

	_, _ = emitter.EmitStatus("run", 1, 1, "done", progress.StatusCompleted, nil)
	if led != nil {
		if err := led.Complete(ctx, runID, len(st.ListIDs())); err != nil {
			logger.Error("ledger update failed", logging.Error(err))
		}
	}
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("artifacts", len(st.ListIDs())),
	)

	return &Result{RunID: runID, RunDir: runDir, Artifacts: artifacts}, nil
}

// fanOut persists each event and forwards it to the caller's callback.
func (p *Pipeline) fanOut(emitter *progress.Emitter) registry.ProgressFunc {
	persist := emitter.Callback()
	return func(stage string, current, total int, message string) {
		persist(stage, current, total, message)
		if p.callback != nil {
			p.callback(stage, current, total, message)
		}
	}
}

// writeRunMeta records the run's identity and goals as an artifact, so a run
// directory is self-describing without the ledger.
func (p *Pipeline) writeRunMeta(st *store.Store, runID string, goals []artifact.Type) error {
	payload := map[string]any{
		"run_id":     runID,
		"goals":      goals,
		"started_at": time.Now().UTC().Format("2006-01-02T15:04:05") + "Z",
	}
	fingerprint, err := stablejson.HashObject(payload)
	if err != nil {
		return fmt.Errorf("hash run meta: %w", err)
	}
	paramsHash, err := stablejson.HashObject(map[string]any{"run": runID})
	if err != nil {
		return fmt.Errorf("hash run id: %w", err)
	}

	env := artifact.New(artifact.KindRunMeta, payload)
	env.Producer = artifact.Producer{Name: "pipeline", Version: "1", ParamsHash: paramsHash}
	env.Fingerprint = fingerprint
	if err := st.WriteArtifact(env); err != nil {
		return fmt.Errorf("persist run meta: %w", err)
	}
	return nil
}
