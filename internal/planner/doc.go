// Package planner turns goal artifact types into an ordered execution plan.
//
// Planning is iterative forward chaining to a fixpoint: any pending module
// whose inputs are satisfiable from the growing available set is appended to
// the plan and its outputs become available, until a full pass makes no
// progress. An input also counts as satisfiable when a registered single-hop
// adapter can bridge it from an available type, so plan-time feasibility
// matches what the runner can achieve through adapter resolution.
//
// Goals that remain unreachable at the fixpoint produce a PlanError naming
// the missing types and the available set at the time of failure.
package planner
