// Package llm forwards prompts to a hosted foundation model.
// This is part of the Imperative Shell - handles I/O with model APIs.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPrompt is returned when the prompt is blank.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrThrottled is returned when the model API rejects the call for rate.
	ErrThrottled = errors.New("model invocation throttled")

	// ErrUnknownBackend is returned by NewInvoker for an unsupported backend.
	ErrUnknownBackend = errors.New("unknown model backend")
)

// Backends accepted by NewInvoker.
const (
	BackendBedrock = "bedrock"
	BackendGemini  = "gemini"
)

// DefaultPrompt is asked when the caller supplies none.
const DefaultPrompt = "Say Hello World! in Spanish, French and Japanese."

// Response is a model's answer to one prompt.
type Response struct {
	Model string `json:"model"`

	// Completion is the generated text.
	Completion string `json:"completion"`

	// Raw is the model's JSON response body.
	Raw json.RawMessage `json:"response"`
}

// Invoker sends a single prompt to a model.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (*Response, error)
}

// InvokeError wraps a failed model call.
type InvokeError struct {
	Backend string
	Model   string
	Err     error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Model, e.Err)
}

func (e *InvokeError) Unwrap() error {
	return e.Err
}

func checkPrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}
