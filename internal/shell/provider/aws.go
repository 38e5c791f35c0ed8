package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	smithy "github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"github.com/artpar/appfleet/internal/core/deployment"
	coreprovider "github.com/artpar/appfleet/internal/core/provider"
	"github.com/artpar/appfleet/internal/core/routing"
)

// EC2API is the subset of the EC2 client used to resolve the VPC.
type EC2API interface {
	DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
}

// ELBAPI is the subset of the Elastic Load Balancing v2 client used to manage
// target groups and listener rules.
type ELBAPI interface {
	DescribeRules(ctx context.Context, params *elbv2.DescribeRulesInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeRulesOutput, error)
	DescribeTargetGroups(ctx context.Context, params *elbv2.DescribeTargetGroupsInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTargetGroupsOutput, error)
	CreateTargetGroup(ctx context.Context, params *elbv2.CreateTargetGroupInput, optFns ...func(*elbv2.Options)) (*elbv2.CreateTargetGroupOutput, error)
	CreateRule(ctx context.Context, params *elbv2.CreateRuleInput, optFns ...func(*elbv2.Options)) (*elbv2.CreateRuleOutput, error)
	SetRulePriorities(ctx context.Context, params *elbv2.SetRulePrioritiesInput, optFns ...func(*elbv2.Options)) (*elbv2.SetRulePrioritiesOutput, error)
	DeleteRule(ctx context.Context, params *elbv2.DeleteRuleInput, optFns ...func(*elbv2.Options)) (*elbv2.DeleteRuleOutput, error)
}

// AWSApplier implements Applier against an Application Load Balancer listener.
type AWSApplier struct {
	ec2      EC2API
	elb      ELBAPI
	settings coreprovider.AWSSettings
	logger   *slog.Logger
}

// NewAWSApplier creates an applier for the listener in settings.
func NewAWSApplier(ec2Client EC2API, elbClient ELBAPI, settings coreprovider.AWSSettings, logger *slog.Logger) *AWSApplier {
	if settings.Concurrency <= 0 {
		settings.Concurrency = coreprovider.DefaultConcurrency
	}
	return &AWSApplier{
		ec2:      ec2Client,
		elb:      elbClient,
		settings: settings,
		logger:   logger.With("provider", "aws", "listener", settings.ListenerARN),
	}
}

// existingRule is a non-default rule found on the listener.
type existingRule struct {
	ARN      string
	Priority int
}

// Apply implements Applier.
func (a *AWSApplier) Apply(ctx context.Context, plan deployment.Plan, diff deployment.PlanDiff) (*ApplyResult, error) {
	ops := coreprovider.Operations(plan, diff)
	result := newResult(ops, false)

	if len(ops) == 0 {
		a.logger.Info("listener already up to date", "apps", len(plan.Apps))
		return result, nil
	}

	for _, op := range ops {
		if op.Kind != coreprovider.OpDeleteRule && (op.Priority < 1 || op.Priority > coreprovider.MaxListenerPriority) {
			return result, &ProviderError{Op: "Apply", App: op.App,
				Err: fmt.Errorf("%w: priority %d", coreprovider.ErrPriorityOutOfRange, op.Priority)}
		}
	}

	existing, err := a.listenerRules(ctx)
	if err != nil {
		return result, err
	}

	deletes := coreprovider.Filter(ops, coreprovider.OpDeleteRule)
	moves := coreprovider.Filter(ops, coreprovider.OpSetPriority)
	var creates []coreprovider.Operation

	// Reconcile against what is actually on the listener.
	for _, op := range coreprovider.Filter(ops, coreprovider.OpCreateRule) {
		rule, ok := existing[op.App]
		switch {
		case !ok:
			creates = append(creates, op)
		case rule.Priority != op.Priority:
			a.logger.Warn("rule exists at another priority", "app", op.App, "priority", rule.Priority)
			op.Kind = coreprovider.OpSetPriority
			op.OldPriority = rule.Priority
			moves = append(moves, op)
		default:
			a.logger.Info("rule already present", "app", op.App, "priority", op.Priority)
		}
	}

	var missing []coreprovider.Operation
	moves, missing = splitMissing(moves, existing)
	for _, op := range missing {
		a.logger.Warn("rule to reprioritize is missing, creating it", "app", op.App)
		op.Kind = coreprovider.OpCreateRule
		creates = append(creates, op)
	}

	if err := a.deleteRules(ctx, deletes, existing, result); err != nil {
		return result, err
	}
	if err := a.setPriorities(ctx, moves, existing, result); err != nil {
		return result, err
	}
	if err := a.createRules(ctx, creates, result); err != nil {
		return result, err
	}

	a.logger.Info("plan applied",
		"created", len(result.Created),
		"reprioritized", len(result.Reprioritized),
		"deleted", len(result.Deleted),
	)
	return result, nil
}

// =============================================================================
// Listener Rules
// =============================================================================

// listenerRules maps app name to the rule routing its path pattern.
func (a *AWSApplier) listenerRules(ctx context.Context) (map[string]existingRule, error) {
	rules := map[string]existingRule{}

	var marker *string
	for {
		out, err := a.elb.DescribeRules(ctx, &elbv2.DescribeRulesInput{
			ListenerArn: aws.String(a.settings.ListenerARN),
			Marker:      marker,
		})
		if err != nil {
			return nil, mapError("DescribeRules", "", err)
		}

		for _, r := range out.Rules {
			if aws.ToBool(r.IsDefault) {
				continue
			}
			priority, err := strconv.Atoi(aws.ToString(r.Priority))
			if err != nil {
				continue
			}
			if app, ok := appFromConditions(r.Conditions); ok {
				rules[app] = existingRule{ARN: aws.ToString(r.RuleArn), Priority: priority}
			}
		}

		if out.NextMarker == nil || aws.ToString(out.NextMarker) == "" {
			return rules, nil
		}
		marker = out.NextMarker
	}
}

func (a *AWSApplier) deleteRules(ctx context.Context, ops []coreprovider.Operation, existing map[string]existingRule, result *ApplyResult) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.settings.Concurrency)

	for _, op := range ops {
		rule, ok := existing[op.App]
		if !ok {
			a.logger.Info("rule already removed", "app", op.App)
			continue
		}

		g.Go(func() error {
			_, err := a.elb.DeleteRule(gctx, &elbv2.DeleteRuleInput{RuleArn: aws.String(rule.ARN)})
			if err != nil {
				return mapError("DeleteRule", op.App, err)
			}
			a.logger.Info("rule deleted", "app", op.App, "priority", rule.Priority)

			mu.Lock()
			result.Deleted = append(result.Deleted, deployment.RuleRef{App: op.App, Priority: rule.Priority})
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	sortRuleRefs(result.Deleted)
	return err
}

// setPriorities moves every rule in one call so priorities can be swapped.
func (a *AWSApplier) setPriorities(ctx context.Context, ops []coreprovider.Operation, existing map[string]existingRule, result *ApplyResult) error {
	if len(ops) == 0 {
		return nil
	}

	pairs := make([]elbtypes.RulePriorityPair, 0, len(ops))
	for _, op := range ops {
		pairs = append(pairs, elbtypes.RulePriorityPair{
			RuleArn:  aws.String(existing[op.App].ARN),
			Priority: aws.Int32(int32(op.Priority)),
		})
	}

	if _, err := a.elb.SetRulePriorities(ctx, &elbv2.SetRulePrioritiesInput{RulePriorities: pairs}); err != nil {
		return mapError("SetRulePriorities", "", err)
	}

	for _, op := range ops {
		a.logger.Info("rule reprioritized", "app", op.App, "from", op.OldPriority, "to", op.Priority)
		result.Reprioritized = append(result.Reprioritized, deployment.RuleChange{
			App: op.App, OldPriority: op.OldPriority, NewPriority: op.Priority,
		})
	}
	sort.Slice(result.Reprioritized, func(i, j int) bool {
		return result.Reprioritized[i].App < result.Reprioritized[j].App
	})
	return nil
}

func (a *AWSApplier) createRules(ctx context.Context, ops []coreprovider.Operation, result *ApplyResult) error {
	if len(ops) == 0 {
		return nil
	}

	vpcID, err := a.resolveVPC(ctx)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.settings.Concurrency)

	for _, op := range ops {
		g.Go(func() error {
			tgARN, err := a.ensureTargetGroup(gctx, op.App, op.Rule, vpcID)
			if err != nil {
				return err
			}

			out, err := a.elb.CreateRule(gctx, &elbv2.CreateRuleInput{
				ListenerArn: aws.String(a.settings.ListenerARN),
				Priority:    aws.Int32(int32(op.Priority)),
				Conditions:  ruleConditions(op.Rule.Conditions),
				Actions: []elbtypes.Action{{
					Type:           elbtypes.ActionTypeEnumForward,
					TargetGroupArn: aws.String(tgARN),
				}},
				Tags: managedTags(op.App),
			})
			if err != nil {
				return mapError("CreateRule", op.App, err)
			}

			ruleARN := ""
			if len(out.Rules) > 0 {
				ruleARN = aws.ToString(out.Rules[0].RuleArn)
			}
			a.logger.Info("rule created", "app", op.App, "priority", op.Priority, "rule_arn", ruleARN)

			mu.Lock()
			result.Created = append(result.Created, deployment.RuleRef{App: op.App, Priority: op.Priority})
			result.TargetGroups[op.App] = tgARN
			mu.Unlock()
			return nil
		})
	}

	err = g.Wait()
	sortRuleRefs(result.Created)
	return err
}

// =============================================================================
// Target Groups and VPC
// =============================================================================

func (a *AWSApplier) ensureTargetGroup(ctx context.Context, app string, rule deployment.RuleSpec, vpcID string) (string, error) {
	arn, err := a.findTargetGroup(ctx, app, rule.TargetGroupName)
	if err != nil || arn != "" {
		return arn, err
	}

	out, err := a.elb.CreateTargetGroup(ctx, &elbv2.CreateTargetGroupInput{
		Name:                aws.String(rule.TargetGroupName),
		Port:                aws.Int32(int32(rule.Port)),
		Protocol:            elbtypes.ProtocolEnum(rule.Protocol),
		VpcId:               aws.String(vpcID),
		TargetType:          elbtypes.TargetTypeEnumIp,
		HealthCheckPath:     aws.String(rule.HealthCheckPath),
		HealthCheckProtocol: elbtypes.ProtocolEnum(rule.Protocol),
		Tags:                managedTags(app),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "DuplicateTargetGroupName" {
			return a.findTargetGroup(ctx, app, rule.TargetGroupName)
		}
		return "", mapError("CreateTargetGroup", app, err)
	}
	if len(out.TargetGroups) == 0 {
		return "", &ProviderError{Op: "CreateTargetGroup", App: app, Err: errors.New("no target group returned")}
	}

	a.logger.Info("target group created", "app", app, "name", rule.TargetGroupName)
	return aws.ToString(out.TargetGroups[0].TargetGroupArn), nil
}

// findTargetGroup returns "" when the target group does not exist.
func (a *AWSApplier) findTargetGroup(ctx context.Context, app, name string) (string, error) {
	out, err := a.elb.DescribeTargetGroups(ctx, &elbv2.DescribeTargetGroupsInput{Names: []string{name}})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "TargetGroupNotFound" {
			return "", nil
		}
		return "", mapError("DescribeTargetGroups", app, err)
	}
	if len(out.TargetGroups) == 0 {
		return "", nil
	}
	return aws.ToString(out.TargetGroups[0].TargetGroupArn), nil
}

func (a *AWSApplier) resolveVPC(ctx context.Context) (string, error) {
	input := &ec2.DescribeVpcsInput{}
	if a.settings.VPCID != "" {
		input.VpcIds = []string{a.settings.VPCID}
	} else {
		input.Filters = []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{a.settings.VPCName}},
		}
	}

	out, err := a.ec2.DescribeVpcs(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidVpcID.NotFound" {
			return "", &ProviderError{Op: "DescribeVpcs", Err: ErrVPCNotFound}
		}
		return "", mapError("DescribeVpcs", "", err)
	}
	if len(out.Vpcs) == 0 {
		return "", &ProviderError{Op: "DescribeVpcs", Err: fmt.Errorf("%w: %s%s", ErrVPCNotFound, a.settings.VPCID, a.settings.VPCName)}
	}

	return aws.ToString(out.Vpcs[0].VpcId), nil
}

// =============================================================================
// Helpers
// =============================================================================

func ruleConditions(conds []routing.Condition) []elbtypes.RuleCondition {
	out := make([]elbtypes.RuleCondition, 0, len(conds))
	for _, c := range conds {
		switch c.Field {
		case routing.FieldHTTPHeader:
			out = append(out, elbtypes.RuleCondition{
				Field: aws.String(c.Field),
				HttpHeaderConfig: &elbtypes.HttpHeaderConditionConfig{
					HttpHeaderName: aws.String(c.HeaderName),
					Values:         c.Values,
				},
			})
		case routing.FieldPathPattern:
			out = append(out, elbtypes.RuleCondition{
				Field:             aws.String(c.Field),
				PathPatternConfig: &elbtypes.PathPatternConditionConfig{Values: c.Values},
			})
		}
	}
	return out
}

// appFromConditions recovers the app name from a "/{app}/*" path pattern.
func appFromConditions(conds []elbtypes.RuleCondition) (string, bool) {
	for _, c := range conds {
		if aws.ToString(c.Field) != routing.FieldPathPattern {
			continue
		}
		values := append([]string{}, c.Values...)
		if c.PathPatternConfig != nil {
			values = append(values, c.PathPatternConfig.Values...)
		}
		for _, v := range values {
			if strings.HasPrefix(v, "/") && strings.HasSuffix(v, "/*") && len(v) > 3 {
				app := v[1 : len(v)-2]
				if routing.PathPattern(app) == v {
					return app, true
				}
			}
		}
	}
	return "", false
}

func splitMissing(ops []coreprovider.Operation, existing map[string]existingRule) (found, missing []coreprovider.Operation) {
	for _, op := range ops {
		if _, ok := existing[op.App]; ok {
			found = append(found, op)
		} else {
			missing = append(missing, op)
		}
	}
	return found, missing
}

func managedTags(app string) []elbtypes.Tag {
	return []elbtypes.Tag{
		{Key: aws.String("ManagedBy"), Value: aws.String("appfleet")},
		{Key: aws.String("App"), Value: aws.String(app)},
	}
}

func sortRuleRefs(refs []deployment.RuleRef) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].App < refs[j].App })
}

// mapError wraps an API error, translating codes callers branch on.
func mapError(op, app string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PriorityInUse" {
		return &ProviderError{Op: op, App: app, Err: fmt.Errorf("%w: %s", ErrPriorityInUse, apiErr.ErrorMessage())}
	}
	return &ProviderError{Op: op, App: app, Err: err}
}
