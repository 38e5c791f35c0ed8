package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	smithy "github.com/aws/smithy-go"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Fake EC2
// =============================================================================

type fakeEC2 struct {
	vpcs  map[string]string // id -> Name tag
	calls int
}

func (f *fakeEC2) DescribeVpcs(ctx context.Context, in *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	f.calls++
	out := &ec2.DescribeVpcsOutput{}

	if len(in.VpcIds) > 0 {
		for _, id := range in.VpcIds {
			if _, ok := f.vpcs[id]; !ok {
				return nil, &smithy.GenericAPIError{Code: "InvalidVpcID.NotFound", Message: id}
			}
			out.Vpcs = append(out.Vpcs, ec2types.Vpc{VpcId: aws.String(id)})
		}
		return out, nil
	}

	for _, flt := range in.Filters {
		if aws.ToString(flt.Name) != "tag:Name" {
			continue
		}
		for id, name := range f.vpcs {
			for _, v := range flt.Values {
				if v == name {
					out.Vpcs = append(out.Vpcs, ec2types.Vpc{VpcId: aws.String(id)})
				}
			}
		}
	}
	return out, nil
}

// =============================================================================
// Fake Load Balancer
// =============================================================================

type fakeRule struct {
	priority   int
	conditions []elbtypes.RuleCondition
	targetARN  string
}

type fakeELB struct {
	mu           sync.Mutex
	seq          int
	rules        map[string]*fakeRule // rule ARN -> rule
	targetGroups map[string]string    // name -> ARN
	pageSize     int

	created  []string // target group names
	setCalls int
	deleted  []string // rule ARNs
	failOn   map[string]error
}

func newFakeELB() *fakeELB {
	return &fakeELB{
		rules:        map[string]*fakeRule{},
		targetGroups: map[string]string{},
		failOn:       map[string]error{},
	}
}

// addRule seeds a rule routing /{app}/* on the listener.
func (f *fakeELB) addRule(app string, priority int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	arn := fmt.Sprintf("arn:rule/%d", f.seq)
	f.rules[arn] = &fakeRule{
		priority: priority,
		conditions: []elbtypes.RuleCondition{{
			Field:             aws.String("path-pattern"),
			PathPatternConfig: &elbtypes.PathPatternConditionConfig{Values: []string{"/" + app + "/*"}},
		}},
	}
	return arn
}

func (f *fakeELB) priorities() map[int]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int]bool{}
	for _, r := range f.rules {
		out[r.priority] = true
	}
	return out
}

func (f *fakeELB) DescribeRules(ctx context.Context, in *elbv2.DescribeRulesInput, _ ...func(*elbv2.Options)) (*elbv2.DescribeRulesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := []elbtypes.Rule{{IsDefault: aws.Bool(true), Priority: aws.String("default"), RuleArn: aws.String("arn:rule/default")}}
	for i := 1; i <= f.seq; i++ {
		arn := fmt.Sprintf("arn:rule/%d", i)
		r, ok := f.rules[arn]
		if !ok {
			continue
		}
		all = append(all, elbtypes.Rule{
			RuleArn:    aws.String(arn),
			Priority:   aws.String(strconv.Itoa(r.priority)),
			Conditions: r.conditions,
			IsDefault:  aws.Bool(false),
		})
	}

	if f.pageSize == 0 {
		return &elbv2.DescribeRulesOutput{Rules: all}, nil
	}

	start := 0
	if in.Marker != nil {
		start, _ = strconv.Atoi(*in.Marker)
	}
	end := min(start+f.pageSize, len(all))
	out := &elbv2.DescribeRulesOutput{Rules: all[start:end]}
	if end < len(all) {
		out.NextMarker = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeELB) DescribeTargetGroups(ctx context.Context, in *elbv2.DescribeTargetGroupsInput, _ ...func(*elbv2.Options)) (*elbv2.DescribeTargetGroupsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := &elbv2.DescribeTargetGroupsOutput{}
	for _, name := range in.Names {
		arn, ok := f.targetGroups[name]
		if !ok {
			return nil, &smithy.GenericAPIError{Code: "TargetGroupNotFound", Message: name}
		}
		out.TargetGroups = append(out.TargetGroups, elbtypes.TargetGroup{TargetGroupArn: aws.String(arn)})
	}
	return out, nil
}

func (f *fakeELB) CreateTargetGroup(ctx context.Context, in *elbv2.CreateTargetGroupInput, _ ...func(*elbv2.Options)) (*elbv2.CreateTargetGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(in.Name)
	if _, ok := f.targetGroups[name]; ok {
		return nil, &smithy.GenericAPIError{Code: "DuplicateTargetGroupName", Message: name}
	}
	arn := "arn:targetgroup/" + name
	f.targetGroups[name] = arn
	f.created = append(f.created, name)
	return &elbv2.CreateTargetGroupOutput{
		TargetGroups: []elbtypes.TargetGroup{{TargetGroupArn: aws.String(arn)}},
	}, nil
}

func (f *fakeELB) CreateRule(ctx context.Context, in *elbv2.CreateRuleInput, _ ...func(*elbv2.Options)) (*elbv2.CreateRuleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failOn["CreateRule"]; err != nil {
		return nil, err
	}

	priority := int(aws.ToInt32(in.Priority))
	for _, r := range f.rules {
		if r.priority == priority {
			return nil, &smithy.GenericAPIError{Code: "PriorityInUse", Message: fmt.Sprintf("priority %d is in use", priority)}
		}
	}

	f.seq++
	arn := fmt.Sprintf("arn:rule/%d", f.seq)
	f.rules[arn] = &fakeRule{
		priority:   priority,
		conditions: in.Conditions,
		targetARN:  aws.ToString(in.Actions[0].TargetGroupArn),
	}
	return &elbv2.CreateRuleOutput{Rules: []elbtypes.Rule{{RuleArn: aws.String(arn)}}}, nil
}

func (f *fakeELB) SetRulePriorities(ctx context.Context, in *elbv2.SetRulePrioritiesInput, _ ...func(*elbv2.Options)) (*elbv2.SetRulePrioritiesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++

	moving := map[string]bool{}
	for _, p := range in.RulePriorities {
		moving[aws.ToString(p.RuleArn)] = true
	}
	for _, p := range in.RulePriorities {
		for arn, r := range f.rules {
			if !moving[arn] && r.priority == int(aws.ToInt32(p.Priority)) {
				return nil, &smithy.GenericAPIError{Code: "PriorityInUse", Message: "priority in use"}
			}
		}
	}
	for _, p := range in.RulePriorities {
		r, ok := f.rules[aws.ToString(p.RuleArn)]
		if !ok {
			return nil, &smithy.GenericAPIError{Code: "RuleNotFound", Message: aws.ToString(p.RuleArn)}
		}
		r.priority = int(aws.ToInt32(p.Priority))
	}
	return &elbv2.SetRulePrioritiesOutput{}, nil
}

func (f *fakeELB) DeleteRule(ctx context.Context, in *elbv2.DeleteRuleInput, _ ...func(*elbv2.Options)) (*elbv2.DeleteRuleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	arn := aws.ToString(in.RuleArn)
	if _, ok := f.rules[arn]; !ok {
		return nil, &smithy.GenericAPIError{Code: "RuleNotFound", Message: arn}
	}
	delete(f.rules, arn)
	f.deleted = append(f.deleted, arn)
	return &elbv2.DeleteRuleOutput{}, nil
}
