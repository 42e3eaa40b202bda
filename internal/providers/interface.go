package providers

import (
	"context"
	"errors"
)

var (
	// ErrMissingAPIKey is returned when no key is configured for a provider.
	ErrMissingAPIKey = errors.New("provider API key not configured")
	// ErrEmptyCompletion is returned when the model answered without any text.
	ErrEmptyCompletion = errors.New("completion returned no content")
)

// Completer performs a single chat completion. It is used both for the
// user-facing turn and for background summarization.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// KeySource resolves provider API keys at call time so that keys submitted
// at runtime take effect without restarting.
type KeySource interface {
	Get(name string) string
}

// CompletionRequest represents a chat completion request
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a non-streaming response
type CompletionResponse struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Float32 and Int build optional request parameters.
func Float32(v float32) *float32 { return &v }

func Int(v int) *int { return &v }
