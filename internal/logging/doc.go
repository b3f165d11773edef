// Package logging assembles the structured slog loggers used across the
// engine.
//
// It centralizes level and output plumbing, exposes typed attribute helpers,
// and derives standard fields (run id, stage, module) from context so engine
// code tags log lines uniformly. A no-op logger is provided for tests and
// wiring code that cannot fail.
package logging
