package speech

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

func newElevenLabsClient(t *testing.T, handler http.HandlerFunc, keys providers.KeySource) *ElevenLabsClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.TTSConfig{
		APIURL:         server.URL + "/v1/text-to-speech",
		VoicesURL:      server.URL + "/v1/voices",
		DefaultVoiceID: "default-voice",
		ModelID:        "eleven_turbo_v2",
		VoiceSettings:  config.VoiceSettings{Stability: 0.5, SimilarityBoost: 0.75, UseSpeakerBoost: true},
		Timeout:        2 * time.Second,
	}
	return NewElevenLabsClient(cfg, keys, nil, nil, nil)
}

func TestSynthesize(t *testing.T) {
	client := newElevenLabsClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/text-to-speech/default-voice", r.URL.Path)
		assert.Equal(t, "el-key", r.Header.Get("xi-api-key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Hello!", body["text"])
		assert.Equal(t, "eleven_turbo_v2", body["model_id"])
		settings := body["voice_settings"].(map[string]interface{})
		assert.InDelta(t, 0.75, settings["similarity_boost"], 0.001)

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}, staticKeys{ElevenLabsKey: "el-key"})

	audio, err := client.Synthesize(context.Background(), "Hello!", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), audio)
}

func TestSynthesize_Errors(t *testing.T) {
	client := newElevenLabsClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, staticKeys{ElevenLabsKey: "bad"})

	_, err := client.Synthesize(context.Background(), "Hello!", "voice")
	assert.ErrorIs(t, err, ErrUnauthorized)

	noKey := newElevenLabsClient(t, func(w http.ResponseWriter, r *http.Request) {}, staticKeys{})
	_, err = noKey.Synthesize(context.Background(), "Hello!", "voice")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestVoices(t *testing.T) {
	client := newElevenLabsClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/voices", r.URL.Path)
		_, _ = w.Write([]byte(`{"voices":[
			{"voice_id":"a","name":"Alice","preview_url":"https://example.com/a.mp3","category":"cloned"},
			{"voice_id":"b","name":"Bob"}
		]}`))
	}, staticKeys{ElevenLabsKey: "el-key"})

	voices, err := client.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 2)
	assert.Equal(t, "cloned", voices[0].Category)
	require.NotNil(t, voices[0].PreviewURL)
	assert.Equal(t, "premium", voices[1].Category)
	assert.Nil(t, voices[1].PreviewURL)
}

func TestSynthesize_RejectedKeyDoesNotOpenBreaker(t *testing.T) {
	rejected := 6
	client := newElevenLabsClient(t, func(w http.ResponseWriter, r *http.Request) {
		if rejected > 0 {
			rejected--
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("mp3"))
	}, staticKeys{ElevenLabsKey: "el-key"})

	for i := 0; i < 6; i++ {
		_, err := client.Synthesize(context.Background(), "hi", "")
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
	audio, err := client.Synthesize(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio)
}
