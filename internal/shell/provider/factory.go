package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	coreprovider "github.com/artpar/appfleet/internal/core/provider"
)

// NewApplier creates an applier of the given kind ("aws" or "dry-run").
func NewApplier(ctx context.Context, kind string, settings coreprovider.AWSSettings, logger *slog.Logger) (Applier, error) {
	k, err := coreprovider.NormalizeKind(kind)
	if err != nil {
		return nil, err
	}

	switch k {
	case coreprovider.KindDryRun:
		return NewDryRunApplier(logger), nil

	case coreprovider.KindAWS:
		if err := coreprovider.ValidateAWSSettings(settings); err != nil {
			return nil, fmt.Errorf("invalid AWS settings: %w", err)
		}

		opts := []func(*config.LoadOptions) error{config.WithRegion(settings.Region)}
		if creds := settings.Credentials; creds.Static() {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
			))
		}

		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		return NewAWSApplier(ec2.NewFromConfig(cfg), elbv2.NewFromConfig(cfg), settings, logger), nil

	default:
		return nil, fmt.Errorf("unsupported applier kind: %s", kind)
	}
}
