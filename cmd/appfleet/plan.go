package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/appfleet/internal/core/deployment"
	"github.com/artpar/appfleet/internal/core/domain"
	"github.com/artpar/appfleet/internal/core/priority"
	"github.com/artpar/appfleet/internal/shell/store"
)

// buildPlan builds the plan for names with the configured assigner.
func (o *rootOptions) buildPlan(names []string) (deployment.Plan, error) {
	assigner, err := priority.New(o.cfg.AssignerConfig())
	if err != nil {
		return deployment.Plan{}, &CommandError{Op: "BuildPlan", Err: err, ExitCode: ExitConfigError}
	}

	plan, err := deployment.BuildPlan(names, o.cfg.PlanParams(), assigner.Assign)
	if err != nil {
		return deployment.Plan{}, &CommandError{Op: "BuildPlan", Err: err, ExitCode: ExitPlanError}
	}

	o.logger.Debug("plan built", "apps", len(plan.Apps), "fingerprint", plan.Fingerprint)
	return plan, nil
}

// newRecord wraps a plan for the history store.
func (o *rootOptions) newRecord(plan deployment.Plan) (*domain.PlanRecord, error) {
	cfg := o.cfg.AssignerConfig()
	record, err := domain.NewPlanRecord(plan, cfg.MaxPriority, string(cfg.Hash))
	if err != nil {
		return nil, &CommandError{Op: "NewPlanRecord", Err: err, ExitCode: ExitPlanError}
	}
	return record, nil
}

// previousRules returns the rules of the latest applied plan, or nil when
// nothing has been applied yet.
func previousRules(cmd *cobra.Command, s store.Store) ([]deployment.RuleRef, string, error) {
	latest, err := s.LatestAppliedPlan(cmd.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", &CommandError{Op: "LatestAppliedPlan", Err: err, ExitCode: ExitDatabaseError}
	}
	return latest.Rules, latest.ID, nil
}

func newPlanCmd(o *rootOptions) *cobra.Command {
	var (
		output string
		save   bool
		diff   bool
	)

	cmd := &cobra.Command{
		Use:   "plan [APP...]",
		Short: "Build and print the deployment plan",
		Long: `Builds the deployment plan for the given apps (or the configured list) and
prints it. With --save the plan is recorded in the local history; with --diff
the routing changes against the last applied plan are printed instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(output); err != nil {
				return err
			}

			plan, err := o.buildPlan(o.appNames(args))
			if err != nil {
				return err
			}

			if save || diff {
				s, err := o.store()
				if err != nil {
					return err
				}
				defer s.Close()

				if save {
					record, err := o.newRecord(plan)
					if err != nil {
						return err
					}
					if err := s.SavePlan(cmd.Context(), record); err != nil {
						return &CommandError{Op: "SavePlan", Err: err, ExitCode: ExitDatabaseError}
					}
					o.logger.Info("plan recorded", "id", record.ID, "fingerprint", record.Fingerprint)
				}

				if diff {
					prev, _, err := previousRules(cmd, s)
					if err != nil {
						return err
					}
					return writeDiff(o.stdout, output, deployment.Diff(prev, plan))
				}
			}

			return writePlan(o.stdout, output, plan)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json or yaml")
	cmd.Flags().BoolVar(&save, "save", false, "Record the plan in the history")
	cmd.Flags().BoolVar(&diff, "diff", false, "Print routing changes against the last applied plan")
	return cmd
}

func newPriorityCmd(o *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "priority NAME...",
		Short: "Print the routing priority of ad hoc names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(output); err != nil {
				return err
			}

			assigner, err := priority.New(o.cfg.AssignerConfig())
			if err != nil {
				return &CommandError{Op: "Priority", Err: err, ExitCode: ExitConfigError}
			}

			refs := make([]deployment.RuleRef, 0, len(args))
			for _, name := range args {
				p, err := assigner.Assign(name)
				if err != nil {
					return &CommandError{Op: "Priority", Err: err, ExitCode: ExitPlanError}
				}
				refs = append(refs, deployment.RuleRef{App: name, Priority: p})
			}

			return writeRuleRefs(o.stdout, output, refs)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json or yaml")
	return cmd
}

func newOutputsCmd(o *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "outputs [APP...]",
		Short: "Print per-app URLs, clone commands and bucket prefixes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(output); err != nil {
				return err
			}

			plan, err := o.buildPlan(o.appNames(args))
			if err != nil {
				return err
			}

			return writeOutputs(o.stdout, output, deployment.BuildOutputs(plan, o.cfg.DeployedEndpoints()))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json or yaml")
	return cmd
}

func newHistoryCmd(o *rootOptions) *cobra.Command {
	var (
		output string
		opts   = store.DefaultListOptions()
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded plans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(output); err != nil {
				return err
			}

			s, err := o.store()
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.ListPlans(cmd.Context(), opts)
			if err != nil {
				return &CommandError{Op: "ListPlans", Err: err, ExitCode: ExitDatabaseError}
			}

			return writeHistory(o.stdout, output, records)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json or yaml")
	cmd.Flags().IntVar(&opts.Limit, "limit", opts.Limit, "Maximum number of plans")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of plans to skip")
	return cmd
}

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return &CommandError{Op: "Output", Err: fmt.Errorf("unknown output format %q", format), ExitCode: ExitConfigError}
	}
}
