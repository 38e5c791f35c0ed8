package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/artpar/appfleet/internal/core/deployment"
	"github.com/artpar/appfleet/internal/core/domain"
	"github.com/artpar/appfleet/internal/shell/provider"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// writeStructured writes v as JSON or YAML. It reports false for the table format.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(v)
	default:
		return false, nil
	}
}

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func writePlan(w io.Writer, format string, plan deployment.Plan) error {
	if done, err := writeStructured(w, format, plan); done {
		return err
	}

	rows := make([][]string, 0, len(plan.Apps))
	for _, a := range plan.Apps {
		rows = append(rows, []string{
			a.Name,
			strconv.Itoa(a.Priority),
			a.Rule.TargetGroupName,
			conditionSummary(a.Rule),
			a.Service.TaskFamily,
			a.Pipeline.Name,
		})
	}
	if err := renderTable(w, []string{"APP", "PRIORITY", "TARGET GROUP", "MATCH", "TASK FAMILY", "PIPELINE"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "fingerprint: %s\n", plan.Fingerprint)
	return err
}

func conditionSummary(rule deployment.RuleSpec) string {
	parts := make([]string, 0, len(rule.Conditions))
	for _, c := range rule.Conditions {
		if c.HeaderName != "" {
			parts = append(parts, c.HeaderName)
			continue
		}
		parts = append(parts, strings.Join(c.Values, ","))
	}
	return strings.Join(parts, " + ")
}

func writeRuleRefs(w io.Writer, format string, refs []deployment.RuleRef) error {
	if done, err := writeStructured(w, format, refs); done {
		return err
	}

	rows := make([][]string, 0, len(refs))
	for _, r := range refs {
		rows = append(rows, []string{r.App, strconv.Itoa(r.Priority)})
	}
	return renderTable(w, []string{"NAME", "PRIORITY"}, rows)
}

func writeDiff(w io.Writer, format string, d deployment.PlanDiff) error {
	if done, err := writeStructured(w, format, d); done {
		return err
	}

	var rows [][]string
	for _, r := range d.Removed {
		rows = append(rows, []string{"-", r.App, strconv.Itoa(r.Priority), ""})
	}
	for _, c := range d.Reprioritized {
		rows = append(rows, []string{"~", c.App, strconv.Itoa(c.NewPriority), strconv.Itoa(c.OldPriority)})
	}
	for _, r := range d.Added {
		rows = append(rows, []string{"+", r.App, strconv.Itoa(r.Priority), ""})
	}
	for _, r := range d.Unchanged {
		rows = append(rows, []string{"=", r.App, strconv.Itoa(r.Priority), ""})
	}
	return renderTable(w, []string{"", "APP", "PRIORITY", "WAS"}, rows)
}

func writeOutputs(w io.Writer, format string, out deployment.Outputs) error {
	if done, err := writeStructured(w, format, out); done {
		return err
	}

	rows := make([][]string, 0, len(out.Apps))
	for _, a := range out.Apps {
		rows = append(rows, []string{a.App, a.URL, a.CloneCommand, a.BucketPrefix})
	}
	if err := renderTable(w, []string{"APP", "URL", "CLONE", "BUCKET PREFIX"}, rows); err != nil {
		return err
	}
	if out.CreateUserCommand != "" {
		_, err := fmt.Fprintf(w, "create first user: %s\n", out.CreateUserCommand)
		return err
	}
	return nil
}

func writeHistory(w io.Writer, format string, records []domain.PlanRecord) error {
	if done, err := writeStructured(w, format, records); done {
		return err
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		applied := ""
		if r.AppliedAt != nil {
			applied = r.AppliedAt.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{
			r.ID,
			string(r.Status),
			strconv.Itoa(len(r.Rules)),
			shortFingerprint(r.Fingerprint),
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			applied,
			r.ErrorMessage,
		})
	}
	return renderTable(w, []string{"ID", "STATUS", "APPS", "FINGERPRINT", "CREATED", "APPLIED", "ERROR"}, rows)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func writeApplyResult(w io.Writer, format string, result *provider.ApplyResult) error {
	if done, err := writeStructured(w, format, result); done {
		return err
	}

	var rows [][]string
	for _, r := range result.Deleted {
		rows = append(rows, []string{"deleted", r.App, strconv.Itoa(r.Priority)})
	}
	for _, c := range result.Reprioritized {
		rows = append(rows, []string{"reprioritized", c.App, fmt.Sprintf("%d -> %d", c.OldPriority, c.NewPriority)})
	}
	for _, r := range result.Created {
		rows = append(rows, []string{"created", r.App, strconv.Itoa(r.Priority)})
	}

	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no changes")
		return err
	}

	if err := renderTable(w, []string{"CHANGE", "APP", "PRIORITY"}, rows); err != nil {
		return err
	}
	if result.DryRun {
		_, err := fmt.Fprintln(w, "dry run: nothing was changed")
		return err
	}
	return nil
}
