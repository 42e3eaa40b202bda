// Package keys holds the API keys used to call external providers.
package keys

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/voxmind/voxmind-backend/internal/config"
)

// Provider key names.
const (
	OpenAI      = "openai"
	HuggingFace = "huggingface"
	ElevenLabs  = "elevenlabs"
)

// ErrUnknownKey is returned by Submit for names other than the provider keys.
var ErrUnknownKey = errors.New("unknown provider key")

// Descriptor documents a key for the status endpoint.
type Descriptor struct {
	Name        string `json:"name"`
	KeyName     string `json:"key_name"`
	Description string `json:"description"`
}

var descriptors = []Descriptor{
	{Name: HuggingFace, KeyName: "HUGGINGFACE_TOKEN", Description: "Required for speech recognition"},
	{Name: OpenAI, KeyName: "OPENAI_API_KEY", Description: "Required for chat functionality"},
	{Name: ElevenLabs, KeyName: "ELEVENLABS_API_KEY", Description: "Required for text-to-speech"},
}

// Store persists sealed keys.
type Store interface {
	LoadProviderKeys(ctx context.Context) (map[string][]byte, error)
	SaveProviderKey(ctx context.Context, name string, sealed []byte) error
	DeleteProviderKeys(ctx context.Context) error
}

// KeyStatus reports whether one key is available.
type KeyStatus struct {
	Descriptor
	IsSet bool `json:"is_set"`
}

// Status is the keyring summary returned by GET /api-keys/status.
type Status struct {
	Keys        []KeyStatus `json:"keys"`
	AllKeysSet  bool        `json:"all_keys_set"`
	MissingKeys []string    `json:"missing_keys"`
}

// Keyring resolves provider keys. Keys submitted at runtime take precedence
// over the ones seeded from configuration. Submitted keys are persisted only
// when both a sealer and a store are configured.
type Keyring struct {
	mu        sync.RWMutex
	seeded    map[string]string
	submitted map[string]string
	sealer    *Sealer
	store     Store
	logger    logrus.FieldLogger
}

// NewKeyring seeds the keyring from configuration.
func NewKeyring(auth config.AuthConfig, sealer *Sealer, store Store, logger logrus.FieldLogger) *Keyring {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Keyring{
		seeded: map[string]string{
			OpenAI:      auth.OpenAIAPIKey,
			HuggingFace: auth.HuggingFaceToken,
			ElevenLabs:  auth.ElevenLabsAPIKey,
		},
		submitted: make(map[string]string),
		sealer:    sealer,
		store:     store,
		logger:    logger,
	}
}

func (k *Keyring) persistent() bool {
	return k.sealer != nil && k.store != nil
}

// Load restores previously submitted keys from the store. Values that cannot
// be opened are skipped with a warning.
func (k *Keyring) Load(ctx context.Context) error {
	if !k.persistent() {
		return nil
	}

	sealed, err := k.store.LoadProviderKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to load provider keys: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for name, value := range sealed {
		if !Known(name) {
			continue
		}
		plain, err := k.sealer.Open(name, value)
		if err != nil {
			k.logger.WithField("key", name).WithError(err).Warn("Discarding unreadable provider key")
			continue
		}
		k.submitted[name] = plain
	}
	return nil
}

// Get implements providers.KeySource.
func (k *Keyring) Get(name string) string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if v := k.submitted[name]; v != "" {
		return v
	}
	return k.seeded[name]
}

// Submit stores the non-empty keys in values. Unknown names are rejected
// before anything changes.
func (k *Keyring) Submit(ctx context.Context, values map[string]string) error {
	for name := range values {
		if !Known(name) {
			return fmt.Errorf("%w %q", ErrUnknownKey, name)
		}
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	for name, value := range values {
		if value == "" {
			continue
		}
		if k.persistent() {
			sealed, err := k.sealer.Seal(name, value)
			if err != nil {
				return err
			}
			if err := k.store.SaveProviderKey(ctx, name, sealed); err != nil {
				return fmt.Errorf("failed to save provider key: %w", err)
			}
		}
		k.submitted[name] = value
	}

	k.logger.Info("API keys updated")
	return nil
}

// Status reports which keys are available.
func (k *Keyring) Status() Status {
	status := Status{
		Keys:        make([]KeyStatus, 0, len(descriptors)),
		MissingKeys: []string{},
	}
	for _, d := range descriptors {
		set := k.Get(d.Name) != ""
		status.Keys = append(status.Keys, KeyStatus{Descriptor: d, IsSet: set})
		if !set {
			status.MissingKeys = append(status.MissingKeys, d.KeyName)
		}
	}
	status.AllKeysSet = len(status.MissingKeys) == 0
	return status
}

// Reset drops every submitted key, leaving only the configured ones.
func (k *Keyring) Reset(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.persistent() {
		if err := k.store.DeleteProviderKeys(ctx); err != nil {
			return fmt.Errorf("failed to delete provider keys: %w", err)
		}
	}
	k.submitted = make(map[string]string)
	k.logger.Info("All API keys have been reset")
	return nil
}

// Known reports whether name is a provider key.
func Known(name string) bool {
	for _, d := range descriptors {
		if d.Name == name {
			return true
		}
	}
	return false
}
