package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAWSCredentials(t *testing.T) {
	tests := []struct {
		name    string
		creds   AWSCredentials
		wantErr error
	}{
		{"default chain", AWSCredentials{}, nil},
		{"static pair", AWSCredentials{AccessKeyID: "AKIA", SecretAccessKey: "secret"}, nil},
		{"missing secret", AWSCredentials{AccessKeyID: "AKIA"}, ErrAWSSecretKeyRequired},
		{"missing access key", AWSCredentials{SecretAccessKey: "secret"}, ErrAWSAccessKeyRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAWSCredentials(tt.creds)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAWSCredentials_Static(t *testing.T) {
	assert.False(t, AWSCredentials{}.Static())
	assert.True(t, AWSCredentials{AccessKeyID: "AKIA", SecretAccessKey: "secret"}.Static())
}

func TestValidateAWSSettings(t *testing.T) {
	valid := AWSSettings{
		Region:      "us-east-1",
		ListenerARN: "arn:aws:elasticloadbalancing:us-east-1:123:listener/app/lb/1/2",
		VPCName:     "StreamlitApplicationsVPC",
	}
	assert.NoError(t, ValidateAWSSettings(valid))

	tests := []struct {
		name    string
		mutate  func(*AWSSettings)
		wantErr error
	}{
		{"no region", func(s *AWSSettings) { s.Region = "" }, ErrRegionRequired},
		{"no listener", func(s *AWSSettings) { s.ListenerARN = "" }, ErrListenerRequired},
		{"no vpc", func(s *AWSSettings) { s.VPCName = "" }, ErrVPCRequired},
		{"half credentials", func(s *AWSSettings) { s.Credentials.AccessKeyID = "AKIA" }, ErrAWSSecretKeyRequired},
		{"priority above listener limit", func(s *AWSSettings) { s.MaxPriority = 50001 }, ErrPriorityOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			assert.ErrorIs(t, ValidateAWSSettings(s), tt.wantErr)
		})
	}

	s := valid
	s.Concurrency = -1
	assert.Error(t, ValidateAWSSettings(s))
}

func TestValidateMaxPriority(t *testing.T) {
	assert.NoError(t, ValidateMaxPriority(0))
	assert.NoError(t, ValidateMaxPriority(1000))
	assert.NoError(t, ValidateMaxPriority(MaxListenerPriority))
	assert.ErrorIs(t, ValidateMaxPriority(MaxListenerPriority+1), ErrPriorityOutOfRange)
}

func TestNormalizeKind(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"aws", KindAWS},
		{" AWS ", KindAWS},
		{"dry-run", KindDryRun},
		{"dryrun", KindDryRun},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeKind(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NormalizeKind("digitalocean")
	assert.ErrorIs(t, err, ErrUnknownApplier)
}
