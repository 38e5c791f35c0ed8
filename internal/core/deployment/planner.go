package deployment

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/artpar/appfleet/internal/core/routing"
	"github.com/artpar/appfleet/internal/core/validation"
)

// =============================================================================
// Plan Building
// =============================================================================

// BuildPlan resolves the deployment plan for the configured app names.
//
// Each app's resources depend only on its own name, params and the priority
// returned by assign. Once every name is assigned, the full set of priorities
// is checked; if two distinct apps share one, the whole plan is rejected with
// a *PriorityCollisionError and no partial plan is returned.
//
// Errors from assign are returned wrapped, so errors.Is(err,
// priority.ErrInvalidInput) still holds.
//
// Example:
//
//	params := DefaultPlanParams()
//	params.OriginHeader.Value = secret // required while a header name is set
//	plan, err := BuildPlan([]string{"chat-app", "summarizer"}, params, assigner.Assign)
func BuildPlan(names []string, params PlanParams, assign PriorityFunc) (Plan, error) {
	if err := validateParams(params); err != nil {
		return Plan{}, err
	}

	if len(names) == 0 {
		return Plan{}, NewPlanError("", "at least one app is required", ErrNoApps)
	}
	if allowed, reason := validation.CanAddApps(len(names), params.MaxApps); !allowed {
		return Plan{}, NewPlanError("", reason, ErrTooManyApps)
	}
	if dup, _ := validation.FindDuplicateApp(names); dup != "" {
		return Plan{}, NewPlanError(dup, "configured more than once", ErrDuplicateApp)
	}

	apps := make([]AppResources, 0, len(names))
	owners := make(map[int]string, len(names))

	for _, name := range names {
		p, err := assign(name)
		if err != nil {
			return Plan{}, fmt.Errorf("assign priority to %q: %w", name, err)
		}
		if reason := validation.ValidateAppName(name); reason != "" {
			return Plan{}, NewPlanError(name, reason, ErrInvalidAppName)
		}

		if other, taken := owners[p]; taken {
			return Plan{}, &PriorityCollisionError{Priority: p, First: other, Second: name}
		}
		owners[p] = name

		apps = append(apps, buildAppResources(name, p, params))
	}

	plan := Plan{
		Shared: buildSharedResources(params),
		Apps:   apps,
	}
	plan.Fingerprint = Fingerprint(plan)

	return plan, nil
}

// CheckPriorities rejects a set of name→priority pairs containing a collision.
// Pairs are checked in the given order; the first repeated priority wins.
func CheckPriorities(refs []RuleRef) error {
	owners := make(map[int]string, len(refs))
	for _, r := range refs {
		if other, taken := owners[r.Priority]; taken && other != r.App {
			return &PriorityCollisionError{Priority: r.Priority, First: other, Second: r.App}
		}
		owners[r.Priority] = r.App
	}
	return nil
}

// Fingerprint returns a stable digest of the plan's content.
// The Fingerprint field itself is excluded.
func Fingerprint(plan Plan) string {
	plan.Fingerprint = ""
	// encoding/json sorts map keys, so equal plans encode identically.
	data, err := json.Marshal(plan)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func validateParams(params PlanParams) error {
	switch {
	case params.ContainerPort <= 0 || params.ContainerPort > 65535:
		return NewPlanError("", fmt.Sprintf("container port %d out of range", params.ContainerPort), ErrInvalidParams)
	case params.CPU <= 0:
		return NewPlanError("", "cpu must be positive", ErrInvalidParams)
	case params.MemoryMiB <= 0:
		return NewPlanError("", "memory must be positive", ErrInvalidParams)
	case params.DesiredCount < 0:
		return NewPlanError("", "desired count must not be negative", ErrInvalidParams)
	case params.OriginHeader.Name != "" && params.OriginHeader.Value == "":
		return NewPlanError("", fmt.Sprintf("origin header %s has no value", params.OriginHeader.Name), ErrInvalidParams)
	case len(params.OriginHeader.Value) > routing.MaxHeaderValueLength:
		return NewPlanError("", fmt.Sprintf("origin header value longer than %d bytes", routing.MaxHeaderValueLength), ErrInvalidParams)
	}
	return nil
}

func buildSharedResources(params PlanParams) SharedResources {
	prefix := params.NamePrefix
	return SharedResources{
		ClusterName:      SharedName(prefix, "Cluster"),
		VPCName:          SharedName(prefix, "VPC"),
		MaxAZs:           2,
		LoadBalancerName: LoadBalancerName(prefix),
		Listener: ListenerSpec{
			Port:              80,
			Protocol:          "HTTP",
			DefaultStatusCode: 404,
		},
		Distribution: DistributionSpec{
			Name:                 SharedName(prefix, "CfDist"),
			OriginHeader:         params.OriginHeader,
			OriginProtocolPolicy: "http-only",
			ViewerProtocolPolicy: "redirect-to-https",
			CachingDisabled:      true,
		},
		UserPoolName:       SharedName(prefix, "UserPool"),
		UserPoolClientName: SharedName(prefix, "UserPoolClient"),
		SecretName:         params.SecretName,
		BucketName:         SharedName(prefix, "Bucket"),
		Policies: []PolicySpec{
			{
				Name:    SharedName(prefix, "BedrockPolicy"),
				Actions: []string{"bedrock:InvokeModel"},
			},
			{
				Name: SharedName(prefix, "TranscribePolicy"),
				Actions: []string{
					"transcribe:GetTranscriptionJob",
					"transcribe:ListTagsForResource",
					"transcribe:ListTranscriptionJobs",
					"transcribe:StartTranscriptionJob",
					"transcribe:TagResource",
					"transcribe:UntagResource",
				},
			},
		},
	}
}

func buildAppResources(name string, priority int, params PlanParams) AppResources {
	return AppResources{
		Name:     name,
		Priority: priority,
		Rule: RuleSpec{
			Priority:        priority,
			TargetGroupName: TargetGroupName(name),
			Port:            params.ContainerPort,
			Protocol:        "HTTP",
			HealthCheckPath: routing.HealthCheckPath(name),
			Conditions: routing.Conditions(routing.RuleParams{
				AppName: name,
				Header:  params.OriginHeader,
			}),
		},
		Service: ServiceSpec{
			Name:          ServiceName(name),
			TaskFamily:    TaskFamily(name),
			CPU:           params.CPU,
			MemoryMiB:     params.MemoryMiB,
			ContainerName: ContainerName(name),
			ContainerPort: params.ContainerPort,
			Env: map[string]string{
				BasePathEnv: routing.BasePath(name),
			},
			LogStreamPrefix: LogStreamPrefix(name),
			DesiredCount:    params.DesiredCount,
			AssignPublicIP:  false,
		},
		ImageRepository:  ImageRepositoryName(name),
		SourceRepository: SourceRepositoryName(name),
		Pipeline: PipelineSpec{
			Name:         PipelineName(name),
			BuildProject: BuildProjectName(name),
			Stages:       []string{StageSource, StageDockerBuild, StageDeploy},
			BuildEnv: map[string]string{
				"ecr":       ImageRepositoryName(name),
				"tag":       params.ImageTag,
				"container": ContainerName(name),
			},
		},
		BucketPrefix: BucketPrefix(name),
	}
}
