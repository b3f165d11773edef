// Package config loads and validates the workspace configuration.
//
// A workspace groups everything the engine persists: per-run artifact
// directories, the run ledger database, and log files. Configuration lives in
// a TOML file; missing files fall back to defaults so the zero-setup path
// works out of the box.
package config
