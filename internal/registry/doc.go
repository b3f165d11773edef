// Package registry holds the static catalogs of processing modules and type
// adapters available to a run.
//
// A module declares the artifact types it consumes and produces; an adapter
// is a single-hop converter from one type to another, used only when a module
// needs a type nothing else supplies directly. Registries carry no execution
// logic; the planner and runner consult them.
package registry
