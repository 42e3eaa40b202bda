package services

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/voxmind/voxmind-backend/internal/providers"
	"github.com/voxmind/voxmind-backend/internal/speech"
)

type voiceEnv struct {
	*chatEnv
	transcriber *fakeTranscriber
	synthesizer *fakeSynthesizer
	voice       *VoiceService
}

func newVoiceEnv(t *testing.T) *voiceEnv {
	t.Helper()
	chat := newChatEnv(t)
	env := &voiceEnv{
		chatEnv:     chat,
		transcriber: &fakeTranscriber{text: "hello there"},
		synthesizer: &fakeSynthesizer{audio: []byte("mp3-bytes")},
	}
	audio := NewAudioService(fakeAudio{chat.db}, chat.conversations.cfg.Audio, quietLogger())
	env.voice = NewVoiceService(chat.conversations, chat.chat, env.transcriber, env.synthesizer, audio, chat.conversations.cfg, quietLogger())
	return env
}

func TestVoiceService_ProcessNewConversation(t *testing.T) {
	env := newVoiceEnv(t)
	env.completer.On("Complete", mock.Anything, mock.MatchedBy(func(req providers.CompletionRequest) bool {
		last := req.Messages[len(req.Messages)-1]
		return last.Role == "user" && last.Content == "hello there"
	})).Return(reply("Hi!"), nil).Once()

	result, err := env.voice.Process(context.Background(), VoiceRequest{
		Audio:       []byte("RIFF"),
		ContentType: "audio/wav",
		VoiceID:     "voice-7",
		ModelID:     "stt-b",
	})
	require.NoError(t, err)

	assert.Equal(t, "hello there", result.Transcription)
	assert.Equal(t, "hello there", result.RawTranscription)
	assert.Equal(t, 1, result.NumSegments)
	assert.NotEmpty(t, result.Segments[0].AudioID)
	assert.Equal(t, "Hi!", result.Response)
	assert.Equal(t, "stt-b", result.STTModelUsed)
	assert.Equal(t, "stt-b", env.transcriber.model)
	assert.Equal(t, "voice-7", env.synthesizer.voice)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("mp3-bytes")), result.AudioBase64)
	require.NotNil(t, result.AudioID)

	conversation, err := env.conversations.Get(context.Background(), result.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "voice-7", conversation.VoiceID)
	assert.Equal(t, 3, conversation.MessageCount)
	// upload and reply
	assert.Len(t, env.db.audio, 2)
}

func TestVoiceService_ProcessExistingConversationUsesStoredModel(t *testing.T) {
	env := newVoiceEnv(t)
	env.completer.On("Complete", mock.Anything, mock.Anything).Return(reply("ok"), nil)

	conversation, err := env.conversations.Create(context.Background(), CreateConversationRequest{STTModelID: "stt-b", VoiceID: "voice-9"})
	require.NoError(t, err)

	result, err := env.voice.Process(context.Background(), VoiceRequest{
		Audio:          []byte("RIFF"),
		ContentType:    "audio/wav",
		ConversationID: &conversation.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, conversation.ID, result.ConversationID)
	assert.Equal(t, "stt-b", env.transcriber.model)
	assert.Equal(t, "voice-9", env.synthesizer.voice)
}

func TestVoiceService_ProcessValidation(t *testing.T) {
	env := newVoiceEnv(t)

	_, err := env.voice.Process(context.Background(), VoiceRequest{Audio: []byte("x"), ContentType: "video/mp4"})
	assert.ErrorIs(t, err, ErrInvalidContentType)

	_, err = env.voice.Process(context.Background(), VoiceRequest{ContentType: "audio/wav"})
	assert.ErrorIs(t, err, ErrEmptyAudio)

	_, err = env.voice.Process(context.Background(), VoiceRequest{Audio: make([]byte, 2048), ContentType: "audio/wav"})
	assert.ErrorIs(t, err, ErrAudioTooLarge)

	_, err = env.voice.Process(context.Background(), VoiceRequest{Audio: []byte("x"), ContentType: "audio/wav", ModelID: "nope"})
	assert.ErrorIs(t, err, ErrInvalidModel)

	assert.Empty(t, env.db.conversations)
}

func TestVoiceService_ProcessTranscriptionFailureAsksAgain(t *testing.T) {
	env := newVoiceEnv(t)
	env.transcriber.err = errors.New("model loading")
	env.completer.On("Complete", mock.Anything, mock.MatchedBy(func(req providers.CompletionRequest) bool {
		return req.Messages[len(req.Messages)-1].Content == speech.UnclearAudioText
	})).Return(reply("Could you repeat that?"), nil).Once()

	result, err := env.voice.Process(context.Background(), VoiceRequest{Audio: []byte("x"), ContentType: "audio/wav"})
	require.NoError(t, err)
	assert.Equal(t, speech.UnclearAudioText, result.Transcription)
	assert.Equal(t, "[Segment 0 transcription failed]", result.RawTranscription)
}

func TestVoiceService_ProcessUnauthorized(t *testing.T) {
	env := newVoiceEnv(t)
	env.transcriber.err = speech.ErrUnauthorized
	conversation, err := env.conversations.Create(context.Background(), CreateConversationRequest{})
	require.NoError(t, err)

	_, err = env.voice.Process(context.Background(), VoiceRequest{
		Audio:          []byte("x"),
		ContentType:    "audio/wav",
		ConversationID: &conversation.ID,
	})
	assert.ErrorIs(t, err, speech.ErrUnauthorized)
	env.completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestVoiceService_ProcessSynthesisIsBestEffort(t *testing.T) {
	env := newVoiceEnv(t)
	env.synthesizer.err = errors.New("quota exceeded")
	env.completer.On("Complete", mock.Anything, mock.Anything).Return(reply("ok"), nil)

	result, err := env.voice.Process(context.Background(), VoiceRequest{Audio: []byte("x"), ContentType: "audio/mpeg"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Response)
	assert.Empty(t, result.AudioBase64)
	assert.Nil(t, result.AudioID)
}

func TestVoiceService_Speak(t *testing.T) {
	env := newVoiceEnv(t)

	result, err := env.voice.Speak(context.Background(), "Good night", "")
	require.NoError(t, err)
	assert.Equal(t, "voice-default", env.synthesizer.voice)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("mp3-bytes")), result.AudioBase64)
	require.NotNil(t, result.AudioID)
	assert.False(t, env.db.audio[*result.AudioID].ConversationID.Valid)

	_, err = env.voice.Speak(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestVoiceService_Voices(t *testing.T) {
	env := newVoiceEnv(t)

	voices, err := env.voice.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "v1", voices[0].VoiceID)

	_, err = env.voice.Voices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, env.synthesizer.voiceCalls)

	env.voice.ForgetVoices()
	_, err = env.voice.Voices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, env.synthesizer.voiceCalls)
}

func TestVoiceService_VoicesErrorNotCached(t *testing.T) {
	env := newVoiceEnv(t)
	env.synthesizer.voicesError = speech.ErrMissingAPIKey

	_, err := env.voice.Voices(context.Background())
	assert.ErrorIs(t, err, speech.ErrMissingAPIKey)

	env.synthesizer.voicesError = nil
	voices, err := env.voice.Voices(context.Background())
	require.NoError(t, err)
	assert.Len(t, voices, 1)
	assert.Equal(t, 2, env.synthesizer.voiceCalls)
}
