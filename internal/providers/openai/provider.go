package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/voxmind/voxmind-backend/internal/config"
	"github.com/voxmind/voxmind-backend/internal/providers"
)

const (
	// ServiceName keys the breaker and metrics entries.
	ServiceName = "openai"
	// KeyName is the keyring entry holding the API key.
	KeyName = "openai"
)

// Provider implements the OpenAI provider
type Provider struct {
	config  config.OpenAIConfig
	keys    providers.KeySource
	breaker *providers.CircuitBreaker
	metrics *providers.MetricsCollector
	logger  logrus.FieldLogger
}

// NewProvider creates a new OpenAI provider. The API key is looked up on
// every call.
func NewProvider(cfg config.OpenAIConfig, keys providers.KeySource, breaker *providers.CircuitBreaker, metrics *providers.MetricsCollector, logger logrus.FieldLogger) *Provider {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if breaker == nil {
		breaker = providers.NewCircuitBreaker(logger)
	}
	if metrics == nil {
		metrics = providers.NewMetricsCollector()
	}
	return &Provider{
		config:  cfg,
		keys:    keys,
		breaker: breaker,
		metrics: metrics,
		logger:  logger,
	}
}

// Model returns the default model used when a request names none.
func (p *Provider) Model() string {
	return p.config.Model
}

// Complete performs a non-streaming completion
func (p *Provider) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	apiKey := ""
	if p.keys != nil {
		apiKey = p.keys.Get(KeyName)
	}
	if apiKey == "" {
		return nil, providers.ErrMissingAPIKey
	}

	client := p.newClient(apiKey)
	openAIReq := p.convertRequest(req)

	var resp openai.ChatCompletionResponse
	start := time.Now()
	err := p.breaker.Execute(ServiceName, func() error {
		var callErr error
		resp, callErr = client.CreateChatCompletion(ctx, openAIReq)
		return callErr
	})
	p.metrics.RecordRequest(ServiceName, err == nil, time.Since(start))
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"model": openAIReq.Model,
			"error": err,
		}).Error("OpenAI completion failed")
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	p.metrics.RecordTokens(ServiceName, resp.Usage.TotalTokens)

	out := p.convertResponse(&resp)
	if strings.TrimSpace(out.Content) == "" {
		return nil, providers.ErrEmptyCompletion
	}
	return out, nil
}

func (p *Provider) newClient(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if p.config.BaseURL != "" {
		cfg.BaseURL = p.config.BaseURL
	}
	if p.config.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: p.config.Timeout}
	}
	return openai.NewClientWithConfig(cfg)
}

// convertRequest converts internal request to OpenAI request
func (p *Provider) convertRequest(req providers.CompletionRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	openAIReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	}
	if openAIReq.Model == "" {
		openAIReq.Model = p.config.Model
	}
	if req.Temperature != nil {
		openAIReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		openAIReq.MaxTokens = *req.MaxTokens
	}

	return openAIReq
}

// convertResponse converts OpenAI response to internal response
func (p *Provider) convertResponse(resp *openai.ChatCompletionResponse) *providers.CompletionResponse {
	out := &providers.CompletionResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = string(resp.Choices[0].FinishReason)
	}
	return out
}
