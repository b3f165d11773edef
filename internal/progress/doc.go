// Package progress persists progress events as artifacts.
//
// Each event is written to the run's store as a Progress:stage.v1 artifact,
// so progress history survives the process and is inspectable with the same
// tools as any other artifact. Events are observational: they never
// participate in planning or memoization.
package progress
