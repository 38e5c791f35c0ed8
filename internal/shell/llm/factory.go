package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	coreprovider "github.com/artpar/appfleet/internal/core/provider"
)

// Config selects and configures a model backend.
type Config struct {
	Backend     string
	Model       string
	MaxTokens   int
	Temperature float64

	// Bedrock
	Region      string
	Credentials coreprovider.AWSCredentials

	// Gemini
	APIKey string
}

// NewInvoker creates an Invoker for cfg.Backend.
func NewInvoker(ctx context.Context, cfg Config, logger *slog.Logger) (Invoker, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendBedrock, "":
		if err := coreprovider.ValidateAWSCredentials(cfg.Credentials); err != nil {
			return nil, err
		}

		opts := []func(*config.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}
		if creds := cfg.Credentials; creds.Static() {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
			))
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		return NewBedrockInvoker(bedrockruntime.NewFromConfig(awsCfg), BedrockConfig{
			ModelID:     cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}, logger), nil

	case BackendGemini:
		client, err := NewGeminiClient(ctx, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		return NewGeminiInvoker(client.Models, GeminiConfig{
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}, logger), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
