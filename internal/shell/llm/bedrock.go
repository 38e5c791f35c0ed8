package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	smithy "github.com/aws/smithy-go"
)

// BedrockAPI is the subset of the Bedrock runtime client used to invoke models.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock text-completion defaults.
const (
	DefaultBedrockModel = "anthropic.claude-v2"
	DefaultMaxTokens    = 300
	DefaultTemperature  = 0.5
)

// BedrockConfig configures a BedrockInvoker.
type BedrockConfig struct {
	ModelID     string
	MaxTokens   int
	Temperature float64
}

// BedrockInvoker invokes a text-completion model on Bedrock.
type BedrockInvoker struct {
	client BedrockAPI
	cfg    BedrockConfig
	logger *slog.Logger
}

// NewBedrockInvoker creates a Bedrock invoker, filling unset config with defaults.
func NewBedrockInvoker(client BedrockAPI, cfg BedrockConfig, logger *slog.Logger) *BedrockInvoker {
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultBedrockModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &BedrockInvoker{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "llm", "backend", BackendBedrock, "model", cfg.ModelID),
	}
}

// textCompletionRequest is the request body of the text-completion models.
type textCompletionRequest struct {
	Prompt            string   `json:"prompt"`
	MaxTokensToSample int      `json:"max_tokens_to_sample"`
	Temperature       float64  `json:"temperature"`
	StopSequences     []string `json:"stop_sequences"`
}

type textCompletionResponse struct {
	Completion string `json:"completion"`
	StopReason string `json:"stop_reason"`
}

// FormatPrompt wraps a user prompt in the Human/Assistant turn markers the
// text-completion models expect.
//
// Example:
//
//	FormatPrompt("hi") // returns "\n\nHuman: hi\n\nAssistant:"
func FormatPrompt(prompt string) string {
	return fmt.Sprintf("\n\nHuman: %s\n\nAssistant:", prompt)
}

// Invoke implements Invoker.
func (b *BedrockInvoker) Invoke(ctx context.Context, prompt string) (*Response, error) {
	if err := checkPrompt(prompt); err != nil {
		return nil, err
	}

	body, err := json.Marshal(textCompletionRequest{
		Prompt:            FormatPrompt(prompt),
		MaxTokensToSample: b.cfg.MaxTokens,
		Temperature:       b.cfg.Temperature,
		StopSequences:     []string{"\n\nHuman:"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	start := time.Now()
	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.cfg.ModelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ThrottlingException" {
			err = fmt.Errorf("%w: %s", ErrThrottled, apiErr.ErrorMessage())
		}
		return nil, &InvokeError{Backend: BackendBedrock, Model: b.cfg.ModelID, Err: err}
	}

	var parsed textCompletionResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return nil, &InvokeError{Backend: BackendBedrock, Model: b.cfg.ModelID, Err: fmt.Errorf("invalid response body: %w", err)}
	}

	b.logger.Debug("model invoked", "duration", time.Since(start), "stop_reason", parsed.StopReason)

	return &Response{
		Model:      b.cfg.ModelID,
		Completion: parsed.Completion,
		Raw:        json.RawMessage(out.Body),
	}, nil
}
