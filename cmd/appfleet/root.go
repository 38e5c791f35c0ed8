package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	coreprovider "github.com/artpar/appfleet/internal/core/provider"
	"github.com/artpar/appfleet/internal/shell/llm"
	"github.com/artpar/appfleet/internal/shell/provider"
	"github.com/artpar/appfleet/internal/shell/store"
)

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

// rootOptions carries flags and wiring shared by every command.
type rootOptions struct {
	configPath string
	apps       []string

	stdout io.Writer
	stderr io.Writer

	cfg    *Config
	logger *slog.Logger

	// Replaceable in tests.
	newApplier func(ctx context.Context, kind string, s coreprovider.AWSSettings, l *slog.Logger) (provider.Applier, error)
	newInvoker func(ctx context.Context, cfg llm.Config, l *slog.Logger) (llm.Invoker, error)
	openStore  func(dsn string) (store.Store, error)
}

func newRootOptions(stdout, stderr io.Writer) *rootOptions {
	return &rootOptions{
		stdout:     stdout,
		stderr:     stderr,
		newApplier: provider.NewApplier,
		newInvoker: llm.NewInvoker,
		openStore: func(dsn string) (store.Store, error) {
			return store.NewSQLiteStore(dsn)
		},
	}
}

func newRootCmd(o *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "appfleet",
		Short: "Plan and apply per-app routing for a fleet of containerized apps",
		Long: `appfleet turns a list of app names into a deterministic deployment plan:
one load balancer rule per app with a priority derived from a hash of the
name, plus the per-app service, repository and pipeline resources.

The plan can be printed, recorded, diffed against the last applied plan and
applied to the load balancer listener.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return o.load()
		},
	}

	root.SetOut(o.stdout)
	root.SetErr(o.stderr)

	root.PersistentFlags().StringVar(&o.configPath, "config", "", "Path to config file")
	root.PersistentFlags().StringSliceVar(&o.apps, "apps", nil, "App names (overrides the apps config key)")

	root.AddCommand(
		newPlanCmd(o),
		newApplyCmd(o),
		newOutputsCmd(o),
		newPriorityCmd(o),
		newHistoryCmd(o),
		newDemoCmd(o),
		newVersionCmd(o),
	)

	return root
}

// load reads and validates configuration and builds the logger.
func (o *rootOptions) load() error {
	cfg, err := LoadConfig(o.configPath)
	if err != nil {
		return &CommandError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
	}
	if err := cfg.Validate(); err != nil {
		return &CommandError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
	}

	o.cfg = cfg
	o.logger = SetupLogger(cfg, o.stderr)
	return nil
}

// appNames returns positional args, then --apps, then the configured list.
func (o *rootOptions) appNames(args []string) []string {
	if len(args) > 0 {
		return args
	}
	if len(o.apps) > 0 {
		return o.apps
	}
	return o.cfg.Apps
}

func (o *rootOptions) store() (store.Store, error) {
	s, err := o.openStore(o.cfg.Database.DSN)
	if err != nil {
		return nil, &CommandError{Op: "OpenStore", Err: err, ExitCode: ExitDatabaseError}
	}
	return s, nil
}

func newVersionCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version and exit",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("appfleet %s (built %s)\n", Version, BuildTime)
		},
	}
}
