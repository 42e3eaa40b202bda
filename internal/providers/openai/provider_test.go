package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxmind/voxmind-backend/internal/config"
	"github.com/voxmind/voxmind-backend/internal/providers"
)

type staticKeys map[string]string

func (k staticKeys) Get(name string) string { return k[name] }

func newTestProvider(t *testing.T, handler http.HandlerFunc, keys providers.KeySource) (*Provider, *providers.MetricsCollector) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	metrics := providers.NewMetricsCollector()
	cfg := config.OpenAIConfig{
		BaseURL:     server.URL + "/v1",
		Model:       "gpt-4o",
		Temperature: 0.7,
		MaxTokens:   500,
		Timeout:     5 * time.Second,
	}
	return NewProvider(cfg, keys, nil, metrics, nil), metrics
}

func TestProvider_Complete(t *testing.T) {
	var received map[string]interface{}
	p, metrics := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}, staticKeys{KeyName: "sk-test"})

	resp, err := p.Complete(context.Background(), providers.CompletionRequest{
		Messages:    []providers.Message{{Role: "user", Content: "hi"}},
		Temperature: providers.Float32(0.3),
		MaxTokens:   providers.Int(200),
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", resp.Content)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4o", received["model"])
	assert.InDelta(t, 0.3, received["temperature"], 0.001)
	assert.EqualValues(t, 200, received["max_tokens"])

	snapshot := metrics.Snapshot()
	assert.EqualValues(t, 1, snapshot[ServiceName].Requests)
	assert.EqualValues(t, 0, snapshot[ServiceName].Errors)
	assert.EqualValues(t, 15, snapshot[ServiceName].Tokens)
}

func TestProvider_Complete_UsesConfigDefaults(t *testing.T) {
	var received map[string]interface{}
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}, staticKeys{KeyName: "sk-test"})

	_, err := p.Complete(context.Background(), providers.CompletionRequest{
		Messages: []providers.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.7, received["temperature"], 0.001)
	assert.EqualValues(t, 500, received["max_tokens"])
}

func TestProvider_Complete_MissingKey(t *testing.T) {
	called := false
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, staticKeys{})

	_, err := p.Complete(context.Background(), providers.CompletionRequest{})
	assert.ErrorIs(t, err, providers.ErrMissingAPIKey)
	assert.False(t, called)
}

func TestProvider_Complete_ServerError(t *testing.T) {
	p, metrics := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	}, staticKeys{KeyName: "sk-test"})

	_, err := p.Complete(context.Background(), providers.CompletionRequest{
		Messages: []providers.Message{{Role: "user", Content: "hi"}},
	})
	assert.Error(t, err)
	assert.EqualValues(t, 1, metrics.Snapshot()[ServiceName].Errors)
}

func TestProvider_Complete_EmptyContent(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","model":"gpt-4o","choices":[]}`))
	}, staticKeys{KeyName: "sk-test"})

	_, err := p.Complete(context.Background(), providers.CompletionRequest{
		Messages: []providers.Message{{Role: "user", Content: "hi"}},
	})
	assert.ErrorIs(t, err, providers.ErrEmptyCompletion)
}
