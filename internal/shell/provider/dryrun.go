package provider

import (
	"context"
	"log/slog"

	"github.com/artpar/appfleet/internal/core/deployment"
	coreprovider "github.com/artpar/appfleet/internal/core/provider"
)

// DryRunApplier logs the operations an apply would perform and touches nothing.
type DryRunApplier struct {
	logger *slog.Logger
}

// NewDryRunApplier creates a dry-run applier.
func NewDryRunApplier(logger *slog.Logger) *DryRunApplier {
	return &DryRunApplier{logger: logger.With("provider", "dry-run")}
}

// Apply implements Applier.
func (a *DryRunApplier) Apply(ctx context.Context, plan deployment.Plan, diff deployment.PlanDiff) (*ApplyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ops := coreprovider.Operations(plan, diff)
	result := newResult(ops, true)

	for _, op := range ops {
		a.logger.Info("would apply", "op", op.Kind, "app", op.App, "priority", op.Priority)

		switch op.Kind {
		case coreprovider.OpDeleteRule:
			result.Deleted = append(result.Deleted, deployment.RuleRef{App: op.App, Priority: op.Priority})
		case coreprovider.OpSetPriority:
			result.Reprioritized = append(result.Reprioritized, deployment.RuleChange{
				App: op.App, OldPriority: op.OldPriority, NewPriority: op.Priority,
			})
		case coreprovider.OpCreateRule:
			result.Created = append(result.Created, deployment.RuleRef{App: op.App, Priority: op.Priority})
		}
	}

	if len(ops) == 0 {
		a.logger.Info("listener already up to date", "apps", len(plan.Apps))
	}

	return result, nil
}
