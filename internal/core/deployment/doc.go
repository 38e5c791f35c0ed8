// Package deployment provides pure functions for deployment planning.
//
// This package turns the configured list of app names into a fully resolved
// deployment plan: shared infrastructure plus one near-identical set of
// resources per app, each with a routing-rule priority. All functions are pure
// (no I/O, no side effects) and comply with ADR-002 "Values as Boundaries".
//
// # Functions
//
//   - Naming: consistent resource names (TargetGroupName, ImageRepositoryName, PipelineName, ...)
//   - Planning: build and validate a plan (BuildPlan), rejecting priority collisions
//   - Outputs: per-app URLs, clone commands and bucket prefixes (BuildOutputs)
//   - Diff: compare the rules of an applied plan with a new one (Diff)
//
// # Usage
//
// The CLI builds a plan, the imperative shell (internal/shell/provider)
// submits it:
//
//	assigner, _ := priority.New(priority.DefaultConfig())
//	params := deployment.DefaultPlanParams()
//	params.OriginHeader.Value = secret
//	plan, err := deployment.BuildPlan(names, params, assigner.Assign)
//	if errors.Is(err, deployment.ErrPriorityCollision) {
//	    // abort before anything external is touched
//	}
package deployment
