package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.WorkspaceDir == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	if c.Paths.RunsDir == "" {
		return errors.New("paths.runs_dir must be set")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if c.Preflight.MinFreeMiB < 0 {
		return errors.New("preflight.min_free_mib must not be negative")
	}
	return nil
}
