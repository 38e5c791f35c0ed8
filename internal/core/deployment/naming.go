package deployment

import (
	"fmt"
	"strings"
)

// =============================================================================
// Per-App Resource Naming Functions
// =============================================================================

// TargetGroupName returns the load balancer target group name for an app.
// The app name is used as-is, so it is bound by the 32 character limit.
func TargetGroupName(app string) string {
	return app
}

// ServiceName returns the container service name for an app.
func ServiceName(app string) string {
	return app
}

// TaskFamily returns the task definition family for an app.
//
// Example:
//
//	TaskFamily("chat-app") // returns "chat-appTaskDefinition"
func TaskFamily(app string) string {
	return fmt.Sprintf("%sTaskDefinition", app)
}

// ContainerName returns the container name inside an app's task.
//
// Example:
//
//	ContainerName("chat-app") // returns "chat-app-Container"
func ContainerName(app string) string {
	return fmt.Sprintf("%s-Container", app)
}

// ImageRepositoryName returns the image registry repository for an app.
// Registry names must be lowercase.
//
// Example:
//
//	ImageRepositoryName("ChatApp") // returns "chatapp-imagerepo"
func ImageRepositoryName(app string) string {
	return fmt.Sprintf("%s-imagerepo", strings.ToLower(app))
}

// SourceRepositoryName returns the source repository for an app.
func SourceRepositoryName(app string) string {
	return app
}

// PipelineName returns the delivery pipeline name for an app.
//
// Example:
//
//	PipelineName("chat-app") // returns "chat-appPipeline"
func PipelineName(app string) string {
	return fmt.Sprintf("%sPipeline", app)
}

// BuildProjectName returns the image build project for an app.
//
// Example:
//
//	BuildProjectName("chat-app") // returns "chat-app-Docker-Build"
func BuildProjectName(app string) string {
	return fmt.Sprintf("%s-Docker-Build", app)
}

// LogStreamPrefix returns the container log stream prefix for an app.
func LogStreamPrefix(app string) string {
	return fmt.Sprintf("%s_ContainerLogs", app)
}

// BucketPrefix returns the key prefix an app may read and write in the shared bucket.
func BucketPrefix(app string) string {
	return app + "/"
}

// =============================================================================
// Shared Resource Naming Functions
// =============================================================================

// SharedName joins the fleet prefix and a resource suffix.
//
// Example:
//
//	SharedName("StreamlitApplications", "Cluster") // returns "StreamlitApplicationsCluster"
func SharedName(prefix, suffix string) string {
	return prefix + suffix
}

// LoadBalancerName returns the load balancer name for the fleet.
//
// Example:
//
//	LoadBalancerName("StreamlitApplications") // returns "StreamlitApplications-alb"
func LoadBalancerName(prefix string) string {
	return fmt.Sprintf("%s-alb", prefix)
}
