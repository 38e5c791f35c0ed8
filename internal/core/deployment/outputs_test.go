package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOutputs(t *testing.T) {
	plan := planWith(t, map[string]int{"chat-app": 1, "summarizer": 2}, "chat-app", "summarizer")

	out := BuildOutputs(plan, Endpoints{
		DistributionDomain: "d111.cloudfront.net",
		BucketName:         "content-bucket",
		CloneURLPrefix:     "codecommit::us-east-1://",
		UserPoolID:         "us-east-1_abc",
	})

	require.Len(t, out.Apps, 2)
	assert.Equal(t, AppOutput{
		App:          "chat-app",
		URL:          "d111.cloudfront.net/chat-app/",
		CloneCommand: "git clone codecommit::us-east-1://chat-app",
		BucketPrefix: "content-bucket/chat-app/",
	}, out.Apps[0])
	assert.Equal(t, "summarizer", out.Apps[1].App)
	assert.Contains(t, out.CreateUserCommand, "--user-pool-id us-east-1_abc")
}

func TestBuildOutputs_NoUserPool(t *testing.T) {
	plan := planWith(t, map[string]int{"a": 1}, "a")

	out := BuildOutputs(plan, Endpoints{DistributionDomain: "example.net"})

	assert.Empty(t, out.CreateUserCommand)
	assert.Equal(t, "example.net/a/", out.Apps[0].URL)
}
