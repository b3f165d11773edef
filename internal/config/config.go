package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains workspace directory configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	RunsDir      string `toml:"runs_dir"`
	LogDir       string `toml:"log_dir"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Ledger contains configuration for the SQLite run ledger.
type Ledger struct {
	Enabled bool `toml:"enabled"`
}

// Preflight contains thresholds for pre-run readiness checks.
type Preflight struct {
	MinFreeMiB int64 `toml:"min_free_mib"`
}

// Config is the root workspace configuration.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Logging   Logging   `toml:"logging"`
	Ledger    Ledger    `toml:"ledger"`
	Preflight Preflight `toml:"preflight"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "loom", "config.toml"), nil
}

// Load reads configuration from path, applying defaults for anything unset.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// fall through to defaults
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteSample writes the embedded sample config to path, refusing to clobber
// an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the workspace directory tree.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.RunsDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// RunDir returns the artifact directory for the named run.
func (c *Config) RunDir(runID string) string {
	return filepath.Join(c.Paths.RunsDir, runID)
}

// LedgerPath returns the SQLite run ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.WorkspaceDir, "ledger.db")
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.RunsDir) == "" && c.Paths.WorkspaceDir != "" {
		c.Paths.RunsDir = filepath.Join(c.Paths.WorkspaceDir, "runs")
	}
	if c.Paths.RunsDir, err = expandPath(c.Paths.RunsDir); err != nil {
		return fmt.Errorf("paths.runs_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" && c.Paths.WorkspaceDir != "" {
		c.Paths.LogDir = filepath.Join(c.Paths.WorkspaceDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Clean(trimmed), nil
}
