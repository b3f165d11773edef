// Package runner executes plans with memoization.
//
// For each planned step the runner resolves inputs (from memory, the store,
// or a single adapter hop), computes the Merkle-style fingerprint chaining
// the module's identity, parameters, and transitive input fingerprints,
// checks the producer index for cached outputs, and either reuses them or
// executes the module and persists what it returned. Steps run strictly
// sequentially in plan order; a failure unwinds the whole run. Everything
// persisted before the failure stays indexed, so re-running the same goals
// cache-hits completed work and retries only what is missing.
package runner
