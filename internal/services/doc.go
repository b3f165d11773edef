// Package services provides cross-cutting helpers shared by the engine's
// components: error classification sentinels with a uniform wrapping helper,
// and context annotations that the logging package turns into structured
// fields (run id, stage, module).
package services
