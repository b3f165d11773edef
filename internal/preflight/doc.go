// Package preflight validates the environment before a run starts.
package preflight
