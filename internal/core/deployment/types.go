package deployment

import "github.com/artpar/appfleet/internal/core/routing"

// =============================================================================
// Plan Types
// =============================================================================

// Plan is the fully resolved set of resources for the fleet.
// This is the pure output of planning, ready for the shell to submit.
type Plan struct {
	Shared      SharedResources `json:"shared" yaml:"shared"`
	Apps        []AppResources  `json:"apps" yaml:"apps"`
	Fingerprint string          `json:"fingerprint" yaml:"fingerprint"`
}

// AppNames returns the app names in plan order.
func (p Plan) AppNames() []string {
	names := make([]string, len(p.Apps))
	for i, a := range p.Apps {
		names[i] = a.Name
	}
	return names
}

// SharedResources are created once and used by every app.
type SharedResources struct {
	ClusterName        string           `json:"cluster_name" yaml:"cluster_name"`
	VPCName            string           `json:"vpc_name" yaml:"vpc_name"`
	MaxAZs             int              `json:"max_azs" yaml:"max_azs"`
	LoadBalancerName   string           `json:"load_balancer_name" yaml:"load_balancer_name"`
	Listener           ListenerSpec     `json:"listener" yaml:"listener"`
	Distribution       DistributionSpec `json:"distribution" yaml:"distribution"`
	UserPoolName       string           `json:"user_pool_name" yaml:"user_pool_name"`
	UserPoolClientName string           `json:"user_pool_client_name" yaml:"user_pool_client_name"`
	SecretName         string           `json:"secret_name" yaml:"secret_name"`
	BucketName         string           `json:"bucket_name" yaml:"bucket_name"`
	Policies           []PolicySpec     `json:"policies" yaml:"policies"`
}

// ListenerSpec describes the shared load balancer listener.
type ListenerSpec struct {
	Port     int    `json:"port" yaml:"port"`
	Protocol string `json:"protocol" yaml:"protocol"`

	// DefaultStatusCode is the fixed response for requests no rule matches.
	DefaultStatusCode int `json:"default_status_code" yaml:"default_status_code"`
}

// DistributionSpec describes the CDN distribution in front of the load balancer.
type DistributionSpec struct {
	Name                 string               `json:"name" yaml:"name"`
	OriginHeader         routing.OriginHeader `json:"origin_header" yaml:"origin_header"`
	OriginProtocolPolicy string               `json:"origin_protocol_policy" yaml:"origin_protocol_policy"`
	ViewerProtocolPolicy string               `json:"viewer_protocol_policy" yaml:"viewer_protocol_policy"`
	CachingDisabled      bool                 `json:"caching_disabled" yaml:"caching_disabled"`
}

// PolicySpec is an inline permission policy attached to every app's task role.
type PolicySpec struct {
	Name    string   `json:"name" yaml:"name"`
	Actions []string `json:"actions" yaml:"actions"`
}

// AppResources are the near-identical resources stamped out per app.
type AppResources struct {
	Name             string       `json:"name" yaml:"name"`
	Priority         int          `json:"priority" yaml:"priority"`
	Rule             RuleSpec     `json:"rule" yaml:"rule"`
	Service          ServiceSpec  `json:"service" yaml:"service"`
	ImageRepository  string       `json:"image_repository" yaml:"image_repository"`
	SourceRepository string       `json:"source_repository" yaml:"source_repository"`
	Pipeline         PipelineSpec `json:"pipeline" yaml:"pipeline"`
	BucketPrefix     string       `json:"bucket_prefix" yaml:"bucket_prefix"`
}

// RuleSpec is an app's routing rule on the shared listener.
type RuleSpec struct {
	Priority        int                 `json:"priority" yaml:"priority"`
	TargetGroupName string              `json:"target_group_name" yaml:"target_group_name"`
	Port            int                 `json:"port" yaml:"port"`
	Protocol        string              `json:"protocol" yaml:"protocol"`
	HealthCheckPath string              `json:"health_check_path" yaml:"health_check_path"`
	Conditions      []routing.Condition `json:"conditions" yaml:"conditions"`
}

// ServiceSpec describes an app's container service.
type ServiceSpec struct {
	Name            string            `json:"name" yaml:"name"`
	TaskFamily      string            `json:"task_family" yaml:"task_family"`
	CPU             int               `json:"cpu" yaml:"cpu"`
	MemoryMiB       int               `json:"memory_mib" yaml:"memory_mib"`
	ContainerName   string            `json:"container_name" yaml:"container_name"`
	ContainerPort   int               `json:"container_port" yaml:"container_port"`
	Env             map[string]string `json:"env" yaml:"env"`
	LogStreamPrefix string            `json:"log_stream_prefix" yaml:"log_stream_prefix"`
	DesiredCount    int               `json:"desired_count" yaml:"desired_count"`
	AssignPublicIP  bool              `json:"assign_public_ip" yaml:"assign_public_ip"`
}

// PipelineSpec describes an app's source-to-service delivery pipeline.
type PipelineSpec struct {
	Name         string            `json:"name" yaml:"name"`
	BuildProject string            `json:"build_project" yaml:"build_project"`
	Stages       []string          `json:"stages" yaml:"stages"`
	BuildEnv     map[string]string `json:"build_env" yaml:"build_env"`
}

// =============================================================================
// Builder Parameter Types
// =============================================================================

// BasePathEnv is the environment variable the demo app reads its URL prefix from.
const BasePathEnv = "STREAMLIT_SERVER_BASE_URL_PATH"

// Pipeline stage names, in execution order.
const (
	StageSource      = "Source"
	StageDockerBuild = "DockerBuild"
	StageDeploy      = "Deploy"
)

// PlanParams contains the fleet-wide inputs for BuildPlan.
type PlanParams struct {
	// NamePrefix prefixes every shared resource name.
	NamePrefix string

	OriginHeader routing.OriginHeader

	ContainerPort int
	CPU           int
	MemoryMiB     int
	DesiredCount  int

	// ImageTag is the tag the build project pushes.
	ImageTag string

	// MaxApps is the listener rule quota.
	MaxApps int

	// SecretName holds the user pool parameters read by the apps.
	SecretName string
}

// DefaultPlanParams returns the parameters used when nothing is overridden.
// The origin header value has no default; BuildPlan rejects the params until
// it is set or the header name is cleared.
func DefaultPlanParams() PlanParams {
	return PlanParams{
		NamePrefix:    "StreamlitApplications",
		OriginHeader:  routing.OriginHeader{Name: routing.DefaultOriginHeaderName},
		ContainerPort: 8501,
		CPU:           256,
		MemoryMiB:     512,
		DesiredCount:  1,
		ImageTag:      "cdk",
		MaxApps:       100,
		SecretName:    "StreamlitApplicationsParamCognitoSecret",
	}
}

// PriorityFunc returns the routing priority for an app name.
// priority.Assigner.Assign satisfies it.
type PriorityFunc func(name string) (int, error)
