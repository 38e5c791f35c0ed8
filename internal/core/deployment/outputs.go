package deployment

import "fmt"

// =============================================================================
// Deployment Outputs
// =============================================================================

// Endpoints are values only known after the shared resources exist.
type Endpoints struct {
	DistributionDomain string
	BucketName         string

	// CloneURLPrefix is prepended to the source repository name,
	// e.g. "codecommit::us-east-1://".
	CloneURLPrefix string

	UserPoolID string
}

// AppOutput is what an operator needs to reach and work on one app.
type AppOutput struct {
	App          string `json:"app" yaml:"app"`
	URL          string `json:"url" yaml:"url"`
	CloneCommand string `json:"clone_command" yaml:"clone_command"`
	BucketPrefix string `json:"bucket_prefix" yaml:"bucket_prefix"`
}

// Outputs are the operator-facing results of a deployment.
type Outputs struct {
	Apps []AppOutput `json:"apps" yaml:"apps"`

	// CreateUserCommand bootstraps the first user of the user pool.
	// Empty when the user pool id is unknown.
	CreateUserCommand string `json:"create_user_command,omitempty" yaml:"create_user_command,omitempty"`
}

// BuildOutputs derives operator outputs from a plan and the deployed endpoints.
//
// Example:
//
//	out := BuildOutputs(plan, Endpoints{DistributionDomain: "d123.cloudfront.net"})
//	// out.Apps[0].URL == "d123.cloudfront.net/chat-app/"
func BuildOutputs(plan Plan, ep Endpoints) Outputs {
	out := Outputs{Apps: make([]AppOutput, 0, len(plan.Apps))}

	for _, a := range plan.Apps {
		out.Apps = append(out.Apps, AppOutput{
			App:          a.Name,
			URL:          fmt.Sprintf("%s/%s/", ep.DistributionDomain, a.Name),
			CloneCommand: fmt.Sprintf("git clone %s%s", ep.CloneURLPrefix, a.SourceRepository),
			BucketPrefix: fmt.Sprintf("%s/%s", ep.BucketName, a.BucketPrefix),
		})
	}

	if ep.UserPoolID != "" {
		out.CreateUserCommand = fmt.Sprintf(
			"aws cognito-idp admin-create-user --user-pool-id %s --username admin --temporary-password <temporary-password>",
			ep.UserPoolID,
		)
	}

	return out
}
