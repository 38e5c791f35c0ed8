package provider

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Settings Validation (Pure - no I/O)
// =============================================================================

var (
	ErrAWSAccessKeyRequired = errors.New("AWS access key ID is required when a secret key is set")
	ErrAWSSecretKeyRequired = errors.New("AWS secret access key is required when an access key is set")
	ErrRegionRequired       = errors.New("AWS region is required")
	ErrListenerRequired     = errors.New("listener ARN is required")
	ErrVPCRequired          = errors.New("VPC id or VPC name is required")
	ErrUnknownApplier       = errors.New("unknown applier kind")
	ErrPriorityOutOfRange   = errors.New("max priority exceeds the listener limit")
)

// Applier kinds accepted by the shell factory.
const (
	KindAWS    = "aws"
	KindDryRun = "dry-run"
)

// MaxListenerPriority is the highest rule priority an AWS listener accepts.
const MaxListenerPriority = 50000

// DefaultConcurrency bounds parallel rule and target group calls.
const DefaultConcurrency = 4

// AWSCredentials are optional static keys. When both keys are empty the
// default credential chain is used.
type AWSCredentials struct {
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty" yaml:"session_token,omitempty"`
}

// Static reports whether static keys are configured.
func (c AWSCredentials) Static() bool {
	return c.AccessKeyID != "" || c.SecretAccessKey != ""
}

// ValidateAWSCredentials checks that static keys come in pairs.
func ValidateAWSCredentials(creds AWSCredentials) error {
	if creds.AccessKeyID == "" && creds.SecretAccessKey != "" {
		return ErrAWSAccessKeyRequired
	}
	if creds.SecretAccessKey == "" && creds.AccessKeyID != "" {
		return ErrAWSSecretKeyRequired
	}
	return nil
}

// AWSSettings locate the shared listener the plan's rules are applied to.
type AWSSettings struct {
	Region      string
	ListenerARN string

	// VPCID wins over VPCName when both are set.
	VPCID   string
	VPCName string

	Concurrency int
	Credentials AWSCredentials

	// MaxPriority is the assigner's upper bound. Zero skips the check.
	MaxPriority int
}

// ValidateAWSSettings validates the settings needed by the AWS applier.
func ValidateAWSSettings(s AWSSettings) error {
	if s.Region == "" {
		return ErrRegionRequired
	}
	if s.ListenerARN == "" {
		return ErrListenerRequired
	}
	if s.VPCID == "" && s.VPCName == "" {
		return ErrVPCRequired
	}
	if s.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", s.Concurrency)
	}
	if err := ValidateMaxPriority(s.MaxPriority); err != nil {
		return err
	}
	return ValidateAWSCredentials(s.Credentials)
}

// ValidateMaxPriority rejects assigner ranges the listener cannot hold.
func ValidateMaxPriority(maxPriority int) error {
	if maxPriority > MaxListenerPriority {
		return fmt.Errorf("%w: %d > %d", ErrPriorityOutOfRange, maxPriority, MaxListenerPriority)
	}
	return nil
}

// NormalizeKind lowercases an applier kind and rejects unknown ones.
func NormalizeKind(kind string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(kind))
	switch k {
	case KindAWS, KindDryRun:
		return k, nil
	case "dryrun":
		return KindDryRun, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownApplier, kind)
	}
}
