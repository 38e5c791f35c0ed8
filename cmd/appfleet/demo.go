package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/appfleet/internal/shell/demo"
	"github.com/artpar/appfleet/internal/shell/llm"
)

func newDemoCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run or query the demo application backend",
	}
	cmd.AddCommand(newDemoServeCmd(o), newDemoAskCmd(o))
	return cmd
}

func newDemoServeCmd(o *rootOptions) *cobra.Command {
	var appName string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo backend under the app's base path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.cfg.Demo
			if appName != "" {
				cfg.App = appName
			}

			invoker, err := o.newInvoker(cmd.Context(), o.cfg.LLMConfig(), o.logger)
			if err != nil {
				return &CommandError{Op: "NewInvoker", Err: err, ExitCode: ExitConfigError}
			}

			handler := demo.NewHandler(cfg.App, cfg.ResolvedBasePath(), invoker, demo.NewMetrics(cfg.App), o.logger).
				WithInvokeTimeout(cfg.InvokeTimeout)
			server := demo.NewServer(demo.ServerConfig{
				Address:         cfg.Address(),
				ReadTimeout:     cfg.ReadTimeout,
				WriteTimeout:    cfg.WriteTimeout,
				ShutdownTimeout: cfg.ShutdownTimeout,
			}, handler.Routes(), o.logger)

			o.logger.Info("starting demo backend",
				"app", cfg.App,
				"base_path", cfg.ResolvedBasePath(),
				"backend", o.cfg.Demo.Backend,
			)

			if err := server.Run(cmd.Context()); err != nil {
				return &CommandError{Op: "DemoServe", Err: err, ExitCode: ExitServerError}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&appName, "app-name", "", "App name (defaults to demo.app)")
	return cmd
}

func newDemoAskCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [PROMPT]",
		Short: "Invoke the model once and print its JSON response",
		Long: fmt.Sprintf(`Sends PROMPT to the configured model and pretty-prints the JSON response
followed by the completion text. Without PROMPT the default is used:

  %s`, llm.DefaultPrompt),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := llm.DefaultPrompt
			if len(args) > 0 {
				prompt = strings.Join(args, " ")
			}

			invoker, err := o.newInvoker(cmd.Context(), o.cfg.LLMConfig(), o.logger)
			if err != nil {
				return &CommandError{Op: "NewInvoker", Err: err, ExitCode: ExitConfigError}
			}

			ctx := cmd.Context()
			if o.cfg.Demo.InvokeTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, o.cfg.Demo.InvokeTimeout)
				defer cancel()
			}

			resp, err := invoker.Invoke(ctx, prompt)
			if err != nil {
				return &CommandError{Op: "Invoke", Err: err, ExitCode: ExitProviderError}
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, resp.Raw, "", "  "); err != nil {
				pretty.Reset()
				pretty.Write(resp.Raw)
			}

			fmt.Fprintf(o.stdout, "%s\n\nFoundation model output:\n\n%s\n", pretty.String(), strings.TrimSpace(resp.Completion))
			return nil
		},
	}
}
