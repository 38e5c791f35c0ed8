package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/artpar/appfleet/internal/core/deployment"
	"github.com/artpar/appfleet/internal/core/domain"
	coreprovider "github.com/artpar/appfleet/internal/core/provider"
	"github.com/artpar/appfleet/internal/shell/llm"
	"github.com/artpar/appfleet/internal/shell/provider"
)

// =============================================================================
// Test Helpers
// =============================================================================

// writeConfig writes a config file with a temp database and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	clearEnv(t)

	dir := t.TempDir()
	content := "database:\n  dsn: " + filepath.Join(dir, "appfleet.db") +
		"\nlog:\n  level: error\nplan:\n  origin_header_value: header-secret\n" + extra
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the CLI with fresh options and returns the exit code and stdout.
func execute(t *testing.T, configPath string, setup func(*rootOptions), args ...string) (int, string) {
	t.Helper()
	return executeContext(t, context.Background(), configPath, setup, args...)
}

func executeContext(t *testing.T, ctx context.Context, configPath string, setup func(*rootOptions), args ...string) (int, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	o := newRootOptions(&stdout, &stderr)
	if setup != nil {
		setup(o)
	}

	root := newRootCmd(o)
	root.SetArgs(append([]string{"--config", configPath}, args...))

	if err := root.ExecuteContext(ctx); err != nil {
		t.Logf("command error: %v\nstderr: %s", err, stderr.String())
		return exitCode(err), stdout.String()
	}
	return ExitSuccess, stdout.String()
}

func history(t *testing.T, configPath string) []domain.PlanRecord {
	t.Helper()

	code, out := execute(t, configPath, nil, "history", "-o", "json")
	require.Equal(t, ExitSuccess, code)

	var records []domain.PlanRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	return records
}

// fakeApplier reports the diff back as applied, or fails with err.
type fakeApplier struct {
	calls int
	diffs []deployment.PlanDiff
	err   error
}

func (f *fakeApplier) Apply(ctx context.Context, plan deployment.Plan, diff deployment.PlanDiff) (*provider.ApplyResult, error) {
	f.calls++
	f.diffs = append(f.diffs, diff)
	if f.err != nil {
		return nil, f.err
	}
	return &provider.ApplyResult{
		Created:       diff.Added,
		Reprioritized: diff.Reprioritized,
		Deleted:       diff.Removed,
	}, nil
}

func withApplier(a provider.Applier) func(*rootOptions) {
	return func(o *rootOptions) {
		o.newApplier = func(ctx context.Context, kind string, s coreprovider.AWSSettings, l *slog.Logger) (provider.Applier, error) {
			if kind == coreprovider.KindDryRun {
				return provider.NewDryRunApplier(l), nil
			}
			return a, nil
		}
	}
}

type fakeInvoker struct {
	prompt string
	resp   *llm.Response
	err    error
}

func (f *fakeInvoker) Invoke(ctx context.Context, prompt string) (*llm.Response, error) {
	f.prompt = prompt
	return f.resp, f.err
}

func withInvoker(inv llm.Invoker) func(*rootOptions) {
	return func(o *rootOptions) {
		o.newInvoker = func(ctx context.Context, cfg llm.Config, l *slog.Logger) (llm.Invoker, error) {
			return inv, nil
		}
	}
}

// =============================================================================
// Command Tests
// =============================================================================

func TestVersionCmd(t *testing.T) {
	code, out := execute(t, filepath.Join(t.TempDir(), "missing.yaml"), nil, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "appfleet dev")
}

func TestPriorityCmd(t *testing.T) {
	cfg := writeConfig(t, "")

	code, out := execute(t, cfg, nil, "priority", "chat-app", "summarizer", "translator", "-o", "json")
	require.Equal(t, ExitSuccess, code)

	var refs []deployment.RuleRef
	require.NoError(t, json.Unmarshal([]byte(out), &refs))
	assert.Equal(t, []deployment.RuleRef{
		{App: "chat-app", Priority: 23042},
		{App: "summarizer", Priority: 3993},
		{App: "translator", Priority: 8496},
	}, refs)
}

func TestPriorityCmd_HashFamilyFromConfig(t *testing.T) {
	cfg := writeConfig(t, "priority:\n  hash: sha256\n")

	code, out := execute(t, cfg, nil, "priority", "chat-app", "-o", "json")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, `"priority": 21388`)
}

func TestPriorityCmd_NameTooLong(t *testing.T) {
	cfg := writeConfig(t, "")

	code, _ := execute(t, cfg, nil, "priority", "a-name-that-is-far-longer-than-thirty-two-bytes")
	assert.Equal(t, ExitPlanError, code)
}

func TestPlanCmd_JSON(t *testing.T) {
	cfg := writeConfig(t, "apps:\n  - chat-app\n  - summarizer\n")

	code, out := execute(t, cfg, nil, "plan", "-o", "json")
	require.Equal(t, ExitSuccess, code)

	var plan deployment.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, []string{"chat-app", "summarizer"}, plan.AppNames())
	assert.Equal(t, 23042, plan.Apps[0].Priority)
	assert.NotEmpty(t, plan.Fingerprint)
}

func TestPlanCmd_YAMLWithAppsFlag(t *testing.T) {
	cfg := writeConfig(t, "")

	code, out := execute(t, cfg, nil, "plan", "--apps", "translator", "-o", "yaml")
	require.Equal(t, ExitSuccess, code)

	var plan deployment.Plan
	require.NoError(t, yaml.Unmarshal([]byte(out), &plan))
	require.Len(t, plan.Apps, 1)
	assert.Equal(t, 8496, plan.Apps[0].Priority)
}

func TestPlanCmd_Table(t *testing.T) {
	cfg := writeConfig(t, "")

	code, out := execute(t, cfg, nil, "plan", "chat-app")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "chat-app")
	assert.Contains(t, out, "23042")
	assert.Contains(t, out, "fingerprint:")
}

func TestPlanCmd_Errors(t *testing.T) {
	cfg := writeConfig(t, "")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"duplicate names", []string{"plan", "chat-app", "chat-app"}, ExitPlanError},
		{"invalid name", []string{"plan", "Chat_App"}, ExitPlanError},
		{"no apps", []string{"plan"}, ExitPlanError},
		{"unknown format", []string{"plan", "chat-app", "-o", "xml"}, ExitConfigError},
		{"unknown flag", []string{"plan", "--bogus"}, ExitConfigError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := execute(t, cfg, nil, tt.args...)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestPlanCmd_BadConfig(t *testing.T) {
	cfg := writeConfig(t, "priority:\n  hash: md5\n")

	code, _ := execute(t, cfg, nil, "plan", "chat-app")
	assert.Equal(t, ExitConfigError, code)
}

func TestPlanCmd_SaveRecordsPlan(t *testing.T) {
	cfg := writeConfig(t, "")

	code, _ := execute(t, cfg, nil, "plan", "chat-app", "summarizer", "--save")
	require.Equal(t, ExitSuccess, code)

	records := history(t, cfg)
	require.Len(t, records, 1)
	assert.Equal(t, domain.PlanStatusPlanned, records[0].Status)
	assert.Equal(t, "fnv1a32", records[0].HashFamily)
	assert.Len(t, records[0].Rules, 2)
}

func TestOutputsCmd(t *testing.T) {
	cfg := writeConfig(t, "endpoints:\n  distribution_domain: d123.cloudfront.net\n")

	code, out := execute(t, cfg, nil, "outputs", "chat-app", "-o", "json")
	require.Equal(t, ExitSuccess, code)

	var outputs deployment.Outputs
	require.NoError(t, json.Unmarshal([]byte(out), &outputs))
	require.Len(t, outputs.Apps, 1)
	assert.Equal(t, "chat-app", outputs.Apps[0].App)
	assert.Contains(t, outputs.Apps[0].URL, "d123.cloudfront.net/chat-app")
}

func TestApplyCmd_DryRunRecordsNothing(t *testing.T) {
	cfg := writeConfig(t, "")

	code, out := execute(t, cfg, nil, "apply", "chat-app", "summarizer")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "dry run")

	assert.Empty(t, history(t, cfg))
}

func TestApplyCmd_DryRunFlagOverridesProvider(t *testing.T) {
	cfg := writeConfig(t, "apply:\n  provider: aws\n")
	applier := &fakeApplier{}

	code, _ := execute(t, cfg, withApplier(applier), "apply", "chat-app", "--dry-run")
	require.Equal(t, ExitSuccess, code)
	assert.Zero(t, applier.calls)
	assert.Empty(t, history(t, cfg))
}

func TestApplyCmd_AppliesAndDiffsAgainstLastApplied(t *testing.T) {
	cfg := writeConfig(t, "apply:\n  provider: aws\n")
	applier := &fakeApplier{}

	code, out := execute(t, cfg, withApplier(applier), "apply", "chat-app", "summarizer", "-o", "json")
	require.Equal(t, ExitSuccess, code)

	var result provider.ApplyResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Created, 2)

	records := history(t, cfg)
	require.Len(t, records, 1)
	assert.Equal(t, domain.PlanStatusApplied, records[0].Status)
	assert.NotNil(t, records[0].AppliedAt)

	// Same apps again: nothing to do, nothing recorded.
	code, out = execute(t, cfg, withApplier(applier), "apply", "chat-app", "summarizer")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "no changes")
	assert.Equal(t, 1, applier.calls)
	assert.Len(t, history(t, cfg), 1)

	// Replace summarizer with translator.
	code, _ = execute(t, cfg, withApplier(applier), "apply", "chat-app", "translator")
	require.Equal(t, ExitSuccess, code)
	require.Equal(t, 2, applier.calls)

	diff := applier.diffs[1]
	assert.Equal(t, []deployment.RuleRef{{App: "translator", Priority: 8496}}, diff.Added)
	assert.Equal(t, []deployment.RuleRef{{App: "summarizer", Priority: 3993}}, diff.Removed)
	assert.Equal(t, []deployment.RuleRef{{App: "chat-app", Priority: 23042}}, diff.Unchanged)

	records = history(t, cfg)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"chat-app", "translator"}, records[0].Plan.AppNames())
}

func TestApplyCmd_FailureRecordsFailedPlan(t *testing.T) {
	cfg := writeConfig(t, "apply:\n  provider: aws\n")
	applier := &fakeApplier{err: &provider.ProviderError{Op: "CreateRule", App: "chat-app", Err: provider.ErrPriorityInUse}}

	code, _ := execute(t, cfg, withApplier(applier), "apply", "chat-app")
	assert.Equal(t, ExitProviderError, code)

	records := history(t, cfg)
	require.Len(t, records, 1)
	assert.Equal(t, domain.PlanStatusFailed, records[0].Status)
	assert.Contains(t, records[0].ErrorMessage, "priority already in use")

	// A failed plan is not a baseline for the next diff.
	code, out := execute(t, cfg, nil, "plan", "chat-app", "--diff", "-o", "json")
	require.Equal(t, ExitSuccess, code)

	var diff deployment.PlanDiff
	require.NoError(t, json.Unmarshal([]byte(out), &diff))
	assert.Equal(t, []deployment.RuleRef{{App: "chat-app", Priority: 23042}}, diff.Added)
}

func TestHistoryCmd_Pagination(t *testing.T) {
	cfg := writeConfig(t, "")

	for _, app := range []string{"chat-app", "summarizer", "translator"} {
		code, _ := execute(t, cfg, nil, "plan", app, "--save")
		require.Equal(t, ExitSuccess, code)
	}

	code, out := execute(t, cfg, nil, "history", "--limit", "1", "--offset", "1", "-o", "json")
	require.Equal(t, ExitSuccess, code)

	var records []domain.PlanRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, []string{"summarizer"}, records[0].Plan.AppNames())
}

func TestDemoAskCmd(t *testing.T) {
	cfg := writeConfig(t, "")
	inv := &fakeInvoker{resp: &llm.Response{
		Model:      llm.DefaultBedrockModel,
		Completion: " Hello there.",
		Raw:        json.RawMessage(`{"completion":" Hello there.","stop_reason":"stop_sequence"}`),
	}}

	code, out := execute(t, cfg, withInvoker(inv), "demo", "ask", "Say", "hello")
	require.Equal(t, ExitSuccess, code)

	assert.Equal(t, "Say hello", inv.prompt)
	assert.Contains(t, out, `"stop_reason": "stop_sequence"`)
	assert.Contains(t, out, "Foundation model output:\n\nHello there.")
}

func TestDemoAskCmd_DefaultPrompt(t *testing.T) {
	cfg := writeConfig(t, "")
	inv := &fakeInvoker{resp: &llm.Response{Raw: json.RawMessage(`{}`)}}

	code, _ := execute(t, cfg, withInvoker(inv), "demo", "ask")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, llm.DefaultPrompt, inv.prompt)
}

func TestDemoAskCmd_InvokeError(t *testing.T) {
	cfg := writeConfig(t, "")
	inv := &fakeInvoker{err: llm.ErrThrottled}

	code, _ := execute(t, cfg, withInvoker(inv), "demo", "ask", "hi")
	assert.Equal(t, ExitProviderError, code)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitDatabaseError, exitCode(&CommandError{Op: "OpenStore", Err: errors.New("x"), ExitCode: ExitDatabaseError}))
	assert.Equal(t, ExitConfigError, exitCode(errors.New("unknown flag")))
}

func TestApplyCmd_DryRunWithDefaultDatabase(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("APPFLEET_PLAN_ORIGIN_HEADER_VALUE", "header-secret")
	t.Setenv("APPFLEET_LOG_LEVEL", "error")

	code, out := execute(t, filepath.Join(dir, "missing.yaml"), nil, "apply", "--dry-run", "chat-app")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "dry run")

	_, err := os.Stat(filepath.Join(dir, "data", "appfleet.db"))
	assert.NoError(t, err)
}

func TestPlanCmd_OriginHeaderValueRequired(t *testing.T) {
	clearEnv(t)
	t.Setenv("APPFLEET_LOG_LEVEL", "error")
	t.Setenv("APPFLEET_DATABASE_DSN", filepath.Join(t.TempDir(), "appfleet.db"))

	code, _ := execute(t, filepath.Join(t.TempDir(), "missing.yaml"), nil, "plan", "chat-app")
	assert.Equal(t, ExitPlanError, code)
}

// cancellingApplier cancels the command context mid-apply, as a signal would.
type cancellingApplier struct {
	cancel context.CancelFunc
}

func (a *cancellingApplier) Apply(ctx context.Context, plan deployment.Plan, diff deployment.PlanDiff) (*provider.ApplyResult, error) {
	a.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestApplyCmd_CancelledApplyIsRecordedAsFailed(t *testing.T) {
	cfg := writeConfig(t, "apply:\n  provider: aws\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	code, _ := executeContext(t, ctx, cfg, withApplier(&cancellingApplier{cancel: cancel}), "apply", "chat-app")
	assert.Equal(t, ExitProviderError, code)

	records := history(t, cfg)
	require.Len(t, records, 1)
	assert.Equal(t, domain.PlanStatusFailed, records[0].Status)
	assert.Contains(t, records[0].ErrorMessage, "context canceled")
}
