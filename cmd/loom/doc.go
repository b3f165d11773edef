// Command loom inspects pipeline workspaces: run history from the ledger and
// the artifacts, envelopes, and progress events inside run directories.
package main
