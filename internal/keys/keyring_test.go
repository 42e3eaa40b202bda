package keys

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxmind/voxmind-backend/internal/config"
)

type fakeStore struct {
	values  map[string][]byte
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string][]byte)}
}

func (s *fakeStore) LoadProviderKeys(ctx context.Context) (map[string][]byte, error) {
	out := make(map[string][]byte, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) SaveProviderKey(ctx context.Context, name string, sealed []byte) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.values[name] = sealed
	return nil
}

func (s *fakeStore) DeleteProviderKeys(ctx context.Context) error {
	s.values = make(map[string][]byte)
	return nil
}

func TestKeyring_SeedAndSubmit(t *testing.T) {
	k := NewKeyring(config.AuthConfig{OpenAIAPIKey: "sk-env"}, nil, nil, nil)

	assert.Equal(t, "sk-env", k.Get(OpenAI))
	assert.Empty(t, k.Get(ElevenLabs))

	require.NoError(t, k.Submit(context.Background(), map[string]string{
		OpenAI:      "sk-user",
		ElevenLabs:  "el-user",
		HuggingFace: "",
	}))

	assert.Equal(t, "sk-user", k.Get(OpenAI))
	assert.Equal(t, "el-user", k.Get(ElevenLabs))
	assert.Empty(t, k.Get(HuggingFace))
}

func TestKeyring_SubmitRejectsUnknown(t *testing.T) {
	k := NewKeyring(config.AuthConfig{}, nil, nil, nil)

	err := k.Submit(context.Background(), map[string]string{OpenAI: "sk", "github": "ghp"})
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.ErrorContains(t, err, "github")
	assert.Empty(t, k.Get(OpenAI))
}

func TestKeyring_Status(t *testing.T) {
	k := NewKeyring(config.AuthConfig{HuggingFaceToken: "hf"}, nil, nil, nil)

	status := k.Status()
	assert.False(t, status.AllKeysSet)
	assert.Equal(t, []string{"OPENAI_API_KEY", "ELEVENLABS_API_KEY"}, status.MissingKeys)
	require.Len(t, status.Keys, 3)
	assert.True(t, status.Keys[0].IsSet)
	assert.Equal(t, "Required for speech recognition", status.Keys[0].Description)

	require.NoError(t, k.Submit(context.Background(), map[string]string{OpenAI: "sk", ElevenLabs: "el"}))
	status = k.Status()
	assert.True(t, status.AllKeysSet)
	assert.Empty(t, status.MissingKeys)
}

func TestKeyring_ResetFallsBackToConfig(t *testing.T) {
	k := NewKeyring(config.AuthConfig{OpenAIAPIKey: "sk-env"}, nil, nil, nil)
	require.NoError(t, k.Submit(context.Background(), map[string]string{OpenAI: "sk-user", ElevenLabs: "el"}))

	require.NoError(t, k.Reset(context.Background()))
	assert.Equal(t, "sk-env", k.Get(OpenAI))
	assert.Empty(t, k.Get(ElevenLabs))
}

func TestKeyring_PersistsSealedKeys(t *testing.T) {
	sealer, err := NewSealer("correct horse battery staple")
	require.NoError(t, err)
	store := newFakeStore()

	k := NewKeyring(config.AuthConfig{}, sealer, store, nil)
	require.NoError(t, k.Submit(context.Background(), map[string]string{OpenAI: "sk-user"}))

	require.Contains(t, store.values, OpenAI)
	assert.NotContains(t, string(store.values[OpenAI]), "sk-user")

	restarted := NewKeyring(config.AuthConfig{}, sealer, store, nil)
	require.NoError(t, restarted.Load(context.Background()))
	assert.Equal(t, "sk-user", restarted.Get(OpenAI))

	require.NoError(t, restarted.Reset(context.Background()))
	assert.Empty(t, store.values)
}

func TestKeyring_LoadSkipsUnreadableKeys(t *testing.T) {
	other, err := NewSealer("another secret")
	require.NoError(t, err)
	sealed, err := other.Seal(OpenAI, "sk-old")
	require.NoError(t, err)

	store := newFakeStore()
	store.values[OpenAI] = sealed
	store.values["legacy"] = []byte("ignored")

	sealer, err := NewSealer("current secret")
	require.NoError(t, err)
	k := NewKeyring(config.AuthConfig{OpenAIAPIKey: "sk-env"}, sealer, store, nil)

	require.NoError(t, k.Load(context.Background()))
	assert.Equal(t, "sk-env", k.Get(OpenAI))
}

func TestKeyring_SubmitStoreFailure(t *testing.T) {
	sealer, err := NewSealer("secret")
	require.NoError(t, err)
	store := newFakeStore()
	store.saveErr = errors.New("db down")

	k := NewKeyring(config.AuthConfig{}, sealer, store, nil)
	err = k.Submit(context.Background(), map[string]string{OpenAI: "sk"})
	assert.ErrorContains(t, err, "db down")
	assert.Empty(t, k.Get(OpenAI))
}
