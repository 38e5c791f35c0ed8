// Package provider applies deployment plans to a cloud load balancer.
// This is part of the Imperative Shell - handles I/O with cloud APIs.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/appfleet/internal/core/deployment"
	coreprovider "github.com/artpar/appfleet/internal/core/provider"
)

var (
	// ErrPriorityInUse is returned when the load balancer already has a rule
	// at the requested priority.
	ErrPriorityInUse = errors.New("listener rule priority already in use")

	// ErrVPCNotFound is returned when the configured VPC does not exist.
	ErrVPCNotFound = errors.New("VPC not found")

	// ErrRuleNotFound is returned when a rule expected on the listener is missing.
	ErrRuleNotFound = errors.New("listener rule not found")
)

// ProviderError wraps a failed provider call with the app it was made for.
type ProviderError struct {
	Op  string // API operation (e.g., "CreateRule")
	App string
	Err error
}

func (e *ProviderError) Error() string {
	if e.App != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.App, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ApplyResult reports what an Apply changed (or would change, for a dry run).
type ApplyResult struct {
	DryRun bool `json:"dry_run" yaml:"dry_run"`

	Created       []deployment.RuleRef    `json:"created" yaml:"created"`
	Reprioritized []deployment.RuleChange `json:"reprioritized" yaml:"reprioritized"`
	Deleted       []deployment.RuleRef    `json:"deleted" yaml:"deleted"`

	// TargetGroups maps app name to target group ARN for created rules.
	TargetGroups map[string]string `json:"target_groups,omitempty" yaml:"target_groups,omitempty"`

	Operations []coreprovider.Operation `json:"operations" yaml:"operations"`
}

// Applier submits a plan's routing rules to a load balancer.
type Applier interface {
	// Apply moves the listener from the previously applied rules to plan.
	// diff must be deployment.Diff(previous, plan).
	Apply(ctx context.Context, plan deployment.Plan, diff deployment.PlanDiff) (*ApplyResult, error)
}

// newResult fills the parts of a result known before any API call.
func newResult(ops []coreprovider.Operation, dryRun bool) *ApplyResult {
	return &ApplyResult{
		DryRun:       dryRun,
		TargetGroups: map[string]string{},
		Operations:   ops,
	}
}
