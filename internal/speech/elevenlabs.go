package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voxmind/voxmind-backend/internal/config"
	"github.com/voxmind/voxmind-backend/internal/providers"
)

const (
	ElevenLabsService = "elevenlabs"
	ElevenLabsKey     = "elevenlabs"
)

// Synthesizer converts text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
	Voices(ctx context.Context) ([]Voice, error)
}

// Voice is one entry of the TTS voice catalogue.
type Voice struct {
	VoiceID    string  `json:"voice_id"`
	Name       string  `json:"name"`
	PreviewURL *string `json:"preview_url"`
	Category   string  `json:"category"`
}

// ElevenLabsClient calls the ElevenLabs text-to-speech API.
type ElevenLabsClient struct {
	cfg     config.TTSConfig
	keys    providers.KeySource
	http    *http.Client
	breaker *providers.CircuitBreaker
	metrics *providers.MetricsCollector
	logger  logrus.FieldLogger
}

func NewElevenLabsClient(cfg config.TTSConfig, keys providers.KeySource, breaker *providers.CircuitBreaker, metrics *providers.MetricsCollector, logger logrus.FieldLogger) *ElevenLabsClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if breaker == nil {
		breaker = providers.NewCircuitBreaker(logger)
	}
	if metrics == nil {
		metrics = providers.NewMetricsCollector()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ElevenLabsClient{
		cfg:     cfg,
		keys:    keys,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		metrics: metrics,
		logger:  logger,
	}
}

type synthesizeRequest struct {
	Text          string               `json:"text"`
	ModelID       string               `json:"model_id"`
	VoiceSettings config.VoiceSettings `json:"voice_settings"`
}

// Synthesize returns MPEG audio for text spoken by voiceID, or the default voice.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	apiKey, err := c.apiKey()
	if err != nil {
		return nil, err
	}
	if voiceID == "" {
		voiceID = c.cfg.DefaultVoiceID
	}

	payload, err := json.Marshal(synthesizeRequest{
		Text:          text,
		ModelID:       c.cfg.ModelID,
		VoiceSettings: c.cfg.VoiceSettings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := strings.TrimRight(c.cfg.APIURL, "/") + "/" + voiceID

	var audio []byte
	var callErr error
	start := time.Now()
	err = c.breaker.Execute(ElevenLabsService, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("xi-api-key", apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "audio/mpeg")

		audio, callErr = c.do(req)
		if callerFault(callErr) {
			return nil
		}
		return callErr
	})
	if err == nil {
		err = callErr
	}
	c.metrics.RecordRequest(ElevenLabsService, err == nil, time.Since(start))
	if err != nil {
		c.logger.WithFields(logrus.Fields{"voice_id": voiceID, "error": err}).Error("Text-to-speech failed")
		return nil, err
	}
	return audio, nil
}

// Voices lists the voices available to the configured key.
func (c *ElevenLabsClient) Voices(ctx context.Context) ([]Voice, error) {
	apiKey, err := c.apiKey()
	if err != nil {
		return nil, err
	}

	var body []byte
	var callErr error
	start := time.Now()
	err = c.breaker.Execute(ElevenLabsService, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.VoicesURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("xi-api-key", apiKey)

		body, callErr = c.do(req)
		if callerFault(callErr) {
			return nil
		}
		return callErr
	})
	if err == nil {
		err = callErr
	}
	c.metrics.RecordRequest(ElevenLabsService, err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode voices: %w", err)
	}
	for i := range payload.Voices {
		if payload.Voices[i].Category == "" {
			payload.Voices[i].Category = "premium"
		}
	}
	return payload.Voices, nil
}

func (c *ElevenLabsClient) apiKey() (string, error) {
	if c.keys == nil {
		return "", ErrMissingAPIKey
	}
	key := c.keys.Get(ElevenLabsKey)
	if key == "" {
		return "", ErrMissingAPIKey
	}
	return key, nil
}

func (c *ElevenLabsClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
