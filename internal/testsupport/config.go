// Package testsupport holds helpers shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"loom/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and the workspace tree already created.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfg.Paths.RunsDir = filepath.Join(base, "workspace", "runs")
	cfg.Paths.LogDir = filepath.Join(base, "workspace", "logs")
	cfg.Preflight.MinFreeMiB = 0

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithLedgerDisabled turns off the run ledger on the test config.
func WithLedgerDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Ledger.Enabled = false
	}
}
