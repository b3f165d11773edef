package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"loom/internal/config"
	"loom/internal/ledger"
	"loom/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		if path == "" {
			defaultPath, err := config.DefaultConfigPath()
			if err != nil {
				c.configErr = err
				return
			}
			path = defaultPath
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

// openRunStore opens the named run directory read-only. Inspection never
// takes the run lock, so live runs stay inspectable.
func (c *commandContext) openRunStore(runID string) (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	runDir := cfg.RunDir(runID)
	if _, err := os.Stat(runDir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s not found under %s", runID, cfg.Paths.RunsDir)
		}
		return nil, fmt.Errorf("stat run directory: %w", err)
	}
	return store.OpenReadOnly(runDir)
}

func (c *commandContext) openLedger() (*ledger.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Ledger.Enabled {
		return nil, fmt.Errorf("run ledger is disabled; enable [ledger] in the config or list %s directly", cfg.Paths.RunsDir)
	}
	if _, err := os.Stat(cfg.LedgerPath()); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no ledger at %s; no runs recorded yet", cfg.LedgerPath())
		}
		return nil, fmt.Errorf("stat ledger: %w", err)
	}
	return ledger.Open(cfg.LedgerPath())
}
