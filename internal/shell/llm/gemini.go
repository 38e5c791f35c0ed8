package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no Gemini model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GenerateContentAPI is satisfied by (*genai.Client).Models.
type GenerateContentAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures a GeminiInvoker.
type GeminiConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// GeminiInvoker invokes a Gemini model through the GenAI API.
type GeminiInvoker struct {
	models GenerateContentAPI
	cfg    GeminiConfig
	logger *slog.Logger
}

// NewGeminiInvoker creates a Gemini invoker, filling unset config with defaults.
func NewGeminiInvoker(models GenerateContentAPI, cfg GeminiConfig, logger *slog.Logger) *GeminiInvoker {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &GeminiInvoker{
		models: models,
		cfg:    cfg,
		logger: logger.With("component", "llm", "backend", BackendGemini, "model", cfg.Model),
	}
}

// NewGeminiClient creates a GenAI client for the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return client, nil
}

// Invoke implements Invoker.
func (g *GeminiInvoker) Invoke(ctx context.Context, prompt string) (*Response, error) {
	if err := checkPrompt(prompt); err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := g.models.GenerateContent(ctx, g.cfg.Model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(g.cfg.Temperature)),
		MaxOutputTokens: int32(g.cfg.MaxTokens),
	})
	if err != nil {
		return nil, &InvokeError{Backend: BackendGemini, Model: g.cfg.Model, Err: err}
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, &InvokeError{Backend: BackendGemini, Model: g.cfg.Model, Err: fmt.Errorf("failed to encode response: %w", err)}
	}

	g.logger.Debug("model invoked", "candidates", len(resp.Candidates))

	return &Response{
		Model:      g.cfg.Model,
		Completion: resp.Text(),
		Raw:        raw,
	}, nil
}
