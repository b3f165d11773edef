// Package ledger records run history in SQLite.
//
// The ledger is a workspace-wide index over runs: one row per run directory,
// tracking the requested goals, lifecycle status, and final artifact count.
// It exists for inspection and never feeds back into planning or caching;
// the artifact store in each run directory remains the durable record.
package ledger
