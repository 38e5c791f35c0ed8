package deployment

import "sort"

// =============================================================================
// Rule Diffing
// =============================================================================

// RuleRef is the (app, priority) pair recorded for an applied routing rule.
type RuleRef struct {
	App      string `json:"app" yaml:"app"`
	Priority int    `json:"priority" yaml:"priority"`
}

// RuleChange is a rule whose priority differs between two plans.
type RuleChange struct {
	App         string `json:"app" yaml:"app"`
	OldPriority int    `json:"old_priority" yaml:"old_priority"`
	NewPriority int    `json:"new_priority" yaml:"new_priority"`
}

// PlanDiff lists how the routing rules of a new plan differ from the applied ones.
// Every slice is sorted by app name.
type PlanDiff struct {
	Added         []RuleRef    `json:"added" yaml:"added"`
	Removed       []RuleRef    `json:"removed" yaml:"removed"`
	Reprioritized []RuleChange `json:"reprioritized" yaml:"reprioritized"`
	Unchanged     []RuleRef    `json:"unchanged" yaml:"unchanged"`
}

// Empty reports whether applying the diff would change nothing.
func (d PlanDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Reprioritized) == 0
}

// RuleRefs returns the plan's (app, priority) pairs in plan order.
func RuleRefs(plan Plan) []RuleRef {
	refs := make([]RuleRef, len(plan.Apps))
	for i, a := range plan.Apps {
		refs[i] = RuleRef{App: a.Name, Priority: a.Rule.Priority}
	}
	return refs
}

// Diff compares previously applied rules with the rules of next.
// A nil previous means nothing has been applied yet, so every rule is added.
//
// Example:
//
//	d := Diff([]RuleRef{{App: "old", Priority: 7}}, plan)
//	// d.Removed == [{old 7}], d.Added == every app in plan
func Diff(previous []RuleRef, next Plan) PlanDiff {
	prev := make(map[string]int, len(previous))
	for _, r := range previous {
		prev[r.App] = r.Priority
	}

	var d PlanDiff
	seen := make(map[string]struct{}, len(next.Apps))

	for _, r := range RuleRefs(next) {
		seen[r.App] = struct{}{}
		old, ok := prev[r.App]
		switch {
		case !ok:
			d.Added = append(d.Added, r)
		case old != r.Priority:
			d.Reprioritized = append(d.Reprioritized, RuleChange{App: r.App, OldPriority: old, NewPriority: r.Priority})
		default:
			d.Unchanged = append(d.Unchanged, r)
		}
	}

	for _, r := range previous {
		if _, ok := seen[r.App]; !ok {
			d.Removed = append(d.Removed, r)
		}
	}

	sortRefs(d.Added)
	sortRefs(d.Removed)
	sortRefs(d.Unchanged)
	sort.Slice(d.Reprioritized, func(i, j int) bool {
		return d.Reprioritized[i].App < d.Reprioritized[j].App
	})

	return d
}

func sortRefs(refs []RuleRef) {
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].App < refs[j].App
	})
}
