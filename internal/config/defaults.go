package config

const (
	defaultWorkspaceDir     = "~/.local/share/loom"
	defaultLogLevel         = "info"
	defaultLogFormat        = "console"
	defaultPreflightFreeMiB = 256
	defaultLedgerEnabled    = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Ledger: Ledger{
			Enabled: defaultLedgerEnabled,
		},
		Preflight: Preflight{
			MinFreeMiB: defaultPreflightFreeMiB,
		},
	}
}
