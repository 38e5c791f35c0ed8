package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/artpar/appfleet/internal/core/deployment"
	"github.com/artpar/appfleet/internal/core/domain"
	coreprovider "github.com/artpar/appfleet/internal/core/provider"
	"github.com/artpar/appfleet/internal/shell/provider"
	"github.com/artpar/appfleet/internal/shell/store"
)

func newApplyCmd(o *rootOptions) *cobra.Command {
	var (
		output string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "apply [APP...]",
		Short: "Apply the plan's routing rules to the load balancer",
		Long: `Builds the plan, diffs it against the last applied plan and submits the
changes to the configured provider: deletes first, then priority changes, then
new rules. The plan is recorded and marked applied on success or failed on
error. With --dry-run (or apply.provider=dry-run) nothing is changed or recorded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(output); err != nil {
				return err
			}

			plan, err := o.buildPlan(o.appNames(args))
			if err != nil {
				return err
			}

			s, err := o.store()
			if err != nil {
				return err
			}
			defer s.Close()

			prev, prevID, err := previousRules(cmd, s)
			if err != nil {
				return err
			}
			diff := deployment.Diff(prev, plan)

			kind, err := coreprovider.NormalizeKind(o.cfg.Apply.Provider)
			if err != nil {
				return &CommandError{Op: "Apply", Err: err, ExitCode: ExitConfigError}
			}
			if dryRun {
				kind = coreprovider.KindDryRun
			}

			applier, err := o.newApplier(cmd.Context(), kind, o.cfg.AWSSettings(), o.logger)
			if err != nil {
				return &CommandError{Op: "NewApplier", Err: err, ExitCode: ExitConfigError}
			}

			if kind == coreprovider.KindDryRun {
				result, err := applier.Apply(cmd.Context(), plan, diff)
				if err != nil {
					return &CommandError{Op: "Apply", Err: err, ExitCode: ExitProviderError}
				}
				return writeApplyResult(o.stdout, output, result)
			}

			if diff.Empty() && prevID != "" {
				o.logger.Info("listener already matches the last applied plan", "plan", prevID)
				return writeApplyResult(o.stdout, output, &provider.ApplyResult{})
			}

			return o.applyRecorded(cmd, s, applier, plan, diff, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json or yaml")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the changes without applying or recording them")
	return cmd
}

// applyRecorded records the plan, applies it and records the outcome.
func (o *rootOptions) applyRecorded(cmd *cobra.Command, s store.Store, applier provider.Applier, plan deployment.Plan, diff deployment.PlanDiff, output string) error {
	ctx := cmd.Context()

	record, err := o.newRecord(plan)
	if err != nil {
		return err
	}
	if err := record.Transition(domain.PlanStatusApplying); err != nil {
		return &CommandError{Op: "Apply", Err: err, ExitCode: ExitPlanError}
	}
	if err := s.SavePlan(ctx, record); err != nil {
		return &CommandError{Op: "SavePlan", Err: err, ExitCode: ExitDatabaseError}
	}

	logger := o.logger.With("plan", record.ID)
	logger.Info("applying plan",
		"added", len(diff.Added),
		"reprioritized", len(diff.Reprioritized),
		"removed", len(diff.Removed),
	)

	result, applyErr := applier.Apply(ctx, plan, diff)
	if applyErr != nil {
		if err := record.TransitionToFailed(applyErr.Error()); err != nil {
			return &CommandError{Op: "Apply", Err: err, ExitCode: ExitPlanError}
		}
		// The failure must be recorded even when ctx was cancelled by a signal.
		if err := s.UpdatePlan(context.WithoutCancel(ctx), record); err != nil {
			logger.Error("failed to record apply failure", "error", err)
		}
		if result != nil {
			_ = writeApplyResult(o.stdout, output, result)
		}
		return &CommandError{Op: "Apply", Err: applyErr, ExitCode: ExitProviderError}
	}

	if err := record.Transition(domain.PlanStatusApplied); err != nil {
		return &CommandError{Op: "Apply", Err: err, ExitCode: ExitPlanError}
	}
	if err := s.UpdatePlan(ctx, record); err != nil {
		return &CommandError{Op: "UpdatePlan", Err: err, ExitCode: ExitDatabaseError}
	}

	logger.Info("plan applied")
	return writeApplyResult(o.stdout, output, result)
}
