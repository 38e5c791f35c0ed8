package provider

import "github.com/artpar/appfleet/internal/core/deployment"

// =============================================================================
// Rule Operations
// =============================================================================

// OpKind is the kind of change made to a listener rule.
type OpKind string

const (
	OpDeleteRule  OpKind = "delete-rule"
	OpSetPriority OpKind = "set-priority"
	OpCreateRule  OpKind = "create-rule"
)

// Operation is one listener-rule change derived from a plan diff.
type Operation struct {
	Kind        OpKind              `json:"kind" yaml:"kind"`
	App         string              `json:"app" yaml:"app"`
	Priority    int                 `json:"priority" yaml:"priority"`
	OldPriority int                 `json:"old_priority,omitempty" yaml:"old_priority,omitempty"`
	Rule        deployment.RuleSpec `json:"rule" yaml:"rule"`
}

// Operations returns the changes needed to move the listener from the
// previously applied rules to the plan.
//
// Deletes come first so their priorities are free before anything is moved
// or created, then priority changes, then creates. Within a kind the order is
// the diff's (by app name).
func Operations(plan deployment.Plan, diff deployment.PlanDiff) []Operation {
	rules := make(map[string]deployment.RuleSpec, len(plan.Apps))
	for _, a := range plan.Apps {
		rules[a.Name] = a.Rule
	}

	ops := make([]Operation, 0, len(diff.Removed)+len(diff.Reprioritized)+len(diff.Added))

	for _, r := range diff.Removed {
		ops = append(ops, Operation{Kind: OpDeleteRule, App: r.App, Priority: r.Priority})
	}

	for _, c := range diff.Reprioritized {
		ops = append(ops, Operation{
			Kind:        OpSetPriority,
			App:         c.App,
			Priority:    c.NewPriority,
			OldPriority: c.OldPriority,
			Rule:        rules[c.App],
		})
	}

	for _, r := range diff.Added {
		ops = append(ops, Operation{Kind: OpCreateRule, App: r.App, Priority: r.Priority, Rule: rules[r.App]})
	}

	return ops
}

// Filter returns the operations of one kind, preserving order.
func Filter(ops []Operation, kind OpKind) []Operation {
	var out []Operation
	for _, op := range ops {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}
