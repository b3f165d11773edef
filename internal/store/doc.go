// Package store persists artifacts durably inside a run directory and
// maintains the two lookup indexes the runner depends on: artifact ids by
// type (last-write-ordered) and artifact ids by producer cache key.
//
// Layout per run directory:
//
//	<run_dir>/index.json
//	<run_dir>/producer_index.json
//	<run_dir>/artifacts/<artifact_id>/envelope.json
//	<run_dir>/artifacts/<artifact_id>/payload.json   (inline payloads only)
//
// Both index files are rewritten wholesale on every write, which is only safe
// for a single writer. Open therefore takes an advisory flock on the run
// directory for the store's lifetime; a second writer fails fast instead of
// corrupting the indexes. OpenReadOnly skips the lock for inspection tooling.
//
// A corrupt or missing index file is treated as empty rather than fatal, and
// a missing payload side file surfaces as a nil payload on read.
package store
