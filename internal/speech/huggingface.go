// Package speech wraps the external speech-to-text and text-to-speech APIs.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/voxmind/voxmind-backend/internal/config"
	"github.com/voxmind/voxmind-backend/internal/providers"
)

const (
	HuggingFaceService = "huggingface"
	HuggingFaceKey     = "huggingface"
)

var (
	ErrMissingAPIKey = errors.New("speech API key not configured")
	ErrUnauthorized  = errors.New("speech API rejected the API key")
	// ErrTranscriptionFailed is returned after every attempt failed.
	ErrTranscriptionFailed = errors.New("failed to transcribe audio")

	errUnusableTranscription = errors.New("unusable transcription")
)

var failureMarkers = []string{
	"Failed to transcribe",
	"Error processing audio",
	"failed to transcribe",
}

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, modelID string, audio []byte, contentType string) (string, error)
}

// HuggingFaceClient calls the HuggingFace inference API for speech recognition.
type HuggingFaceClient struct {
	cfg     config.STTConfig
	keys    providers.KeySource
	http    *http.Client
	breaker *providers.CircuitBreaker
	metrics *providers.MetricsCollector
	logger  logrus.FieldLogger
}

func NewHuggingFaceClient(cfg config.STTConfig, keys providers.KeySource, breaker *providers.CircuitBreaker, metrics *providers.MetricsCollector, logger logrus.FieldLogger) *HuggingFaceClient {
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
	return &HuggingFaceClient{
		cfg:     cfg,
		keys:    keys,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		metrics: metrics,
		logger:  logger,
	}
}

// Transcribe posts the audio to {api_url}/{modelID}. Model-loading responses,
// failure texts, timeouts and server errors are retried with exponential
// backoff; a rejected key is not.
func (c *HuggingFaceClient) Transcribe(ctx context.Context, modelID string, audio []byte, contentType string) (string, error) {
	token := ""
	if c.keys != nil {
		token = c.keys.Get(HuggingFaceKey)
	}
	if token == "" {
		return "", ErrMissingAPIKey
	}

	attempts := c.cfg.Retries
	if attempts < 1 {
		attempts = 1
	}
	base := c.cfg.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))

	url := strings.TrimRight(c.cfg.APIURL, "/") + "/" + modelID
	log := c.logger.WithField("model", modelID)

	attempt := 0
	var text string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		log.WithField("attempt", attempt).Debug("Calling speech recognition")

		start := time.Now()
		var result string
		var callErr error
		err := c.breaker.Execute(HuggingFaceService, func() error {
			result, callErr = c.post(ctx, url, token, audio, contentType)
			if callerFault(callErr) {
				return nil
			}
			return callErr
		})
		if err == nil {
			err = callErr
		}
		c.metrics.RecordRequest(HuggingFaceService, err == nil, time.Since(start))

		switch {
		case err == nil:
			text = result
			return nil
		case errors.Is(err, ErrUnauthorized), errors.Is(err, providers.ErrCircuitOpen):
			return err
		default:
			log.WithFields(logrus.Fields{"attempt": attempt, "error": err}).Warn("Speech recognition attempt failed")
			return retry.RetryableError(err)
		}
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, providers.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w after %d attempts: %v", ErrTranscriptionFailed, attempt, err)
	}
	return text, nil
}

func (c *HuggingFaceClient) post(ctx context.Context, url, token string, audio []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", ErrUnauthorized
	case resp.StatusCode == http.StatusServiceUnavailable:
		return "", errors.New("model loading (status 503)")
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	text := transcriptionText(body)
	if text == "" || containsFailureMarker(text) {
		return "", fmt.Errorf("%w: %q", errUnusableTranscription, text)
	}
	return text, nil
}

// transcriptionText reads {"text": ...} and falls back to the raw body.
func transcriptionText(body []byte) string {
	var payload struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Text != nil {
		return strings.TrimSpace(*payload.Text)
	}
	return strings.TrimSpace(string(body))
}

// callerFault reports errors caused by the request rather than the upstream
// service. They must not count against the breaker.
func callerFault(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, errUnusableTranscription)
}

func containsFailureMarker(text string) bool {
	for _, marker := range failureMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
