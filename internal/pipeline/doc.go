// Package pipeline is the high-level entry point for executing runs.
//
// It ties the engine together: environment preflight, the per-run artifact
// store, the ledger row tracking the run lifecycle, progress fan-out, and
// the runner itself. Callers supply registries and goals; everything else
// comes from configuration.
package pipeline
