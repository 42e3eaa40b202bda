package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voxmind/voxmind-backend/internal/config"
	"github.com/voxmind/voxmind-backend/internal/memory"
	"github.com/voxmind/voxmind-backend/internal/providers"
	"github.com/voxmind/voxmind-backend/internal/repository"
	"github.com/voxmind/voxmind-backend/internal/speech"
)

const (
	synthesizedContentType = "audio/mpeg"

	voicesCacheKey = "voices"
	voicesCacheTTL = 10 * time.Minute
)

// VoiceRequest is one recorded user utterance. A nil ConversationID starts a
// new conversation.
type VoiceRequest struct {
	Audio          []byte
	ContentType    string
	ConversationID *uuid.UUID
	VoiceID        string
	ModelID        string
}

// VoiceResult is the transcribed turn and its spoken answer.
type VoiceResult struct {
	ConversationID   uuid.UUID        `json:"conversation_id"`
	Transcription    string           `json:"transcription"`
	RawTranscription string           `json:"raw_transcription"`
	Segments         []speech.Segment `json:"segment_transcriptions"`
	NumSegments      int              `json:"num_segments"`
	Response         string           `json:"response"`
	Model            string           `json:"model"`
	STTModelUsed     string           `json:"stt_model_used"`
	Usage            providers.Usage  `json:"usage"`
	History          []memory.Message `json:"conversation_history"`
	MemoryStats      MemoryStats      `json:"memory_stats"`
	AudioBase64      string           `json:"tts_audio_base64,omitempty"`
	AudioID          *uuid.UUID       `json:"audio_id,omitempty"`
}

// SpeechResult is synthesized audio.
type SpeechResult struct {
	AudioBase64 string     `json:"audio_base64"`
	AudioID     *uuid.UUID `json:"audio_id,omitempty"`
}

// VoiceService runs voice turns: speech to text, a chat turn, then text to
// speech.
type VoiceService struct {
	conversations *ConversationService
	chat          *ChatService
	transcriber   speech.Transcriber
	synthesizer   speech.Synthesizer
	audio         *AudioService
	voices        *CacheService[[]speech.Voice]
	cfg           *config.Config
	logger        logrus.FieldLogger
}

func NewVoiceService(
	conversations *ConversationService,
	chat *ChatService,
	transcriber speech.Transcriber,
	synthesizer speech.Synthesizer,
	audio *AudioService,
	cfg *config.Config,
	logger logrus.FieldLogger,
) *VoiceService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &VoiceService{
		conversations: conversations,
		chat:          chat,
		transcriber:   transcriber,
		synthesizer:   synthesizer,
		audio:         audio,
		voices:        NewCacheService[[]speech.Voice](),
		cfg:           cfg,
		logger:        logger,
	}
}

// Process transcribes req.Audio and answers it. Speech synthesis and audio
// storage are best effort; their failures only drop the audio from the result.
func (s *VoiceService) Process(ctx context.Context, req VoiceRequest) (*VoiceResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	conversation, err := s.conversation(ctx, req)
	if err != nil {
		return nil, err
	}
	modelID := firstNonBlank(req.ModelID, conversation.STTModelID, s.cfg.STT.DefaultModel)
	log := s.logger.WithFields(logrus.Fields{
		"conversation_id": conversation.ID,
		"stt_model":       modelID,
	})

	segment := speech.Segment{Index: 0}
	if stored := s.storeAudio(ctx, log, conversation.ID, req.ContentType, req.Audio); stored != nil {
		segment.AudioID = stored.ID.String()
	}

	text, err := s.transcriber.Transcribe(ctx, modelID, req.Audio, req.ContentType)
	switch {
	case errors.Is(err, speech.ErrMissingAPIKey), errors.Is(err, speech.ErrUnauthorized):
		return nil, err
	case err != nil:
		log.WithError(err).Warn("Transcription failed")
		segment.Text = fmt.Sprintf("[Segment %d transcription failed]", segment.Index)
	default:
		segment.Text = text
	}
	segments := []speech.Segment{segment}
	transcription := speech.CleanTranscript(segments)

	turn, err := s.chat.ProcessTurn(ctx, TurnRequest{
		ConversationID: conversation.ID,
		Message:        transcription,
	})
	if err != nil {
		return nil, err
	}

	result := &VoiceResult{
		ConversationID:   conversation.ID,
		Transcription:    transcription,
		RawTranscription: segment.Text,
		Segments:         segments,
		NumSegments:      len(segments),
		Response:         turn.Response,
		Model:            turn.Model,
		STTModelUsed:     modelID,
		Usage:            turn.Usage,
		History:          turn.History,
		MemoryStats:      turn.MemoryStats,
	}

	spoken, err := s.speak(ctx, turn.Response, conversation.VoiceID, conversation.ID)
	if err != nil {
		log.WithError(err).Warn("Speech synthesis failed")
	} else {
		result.AudioBase64 = spoken.AudioBase64
		result.AudioID = spoken.AudioID
	}
	return result, nil
}

// Speak synthesizes text without a conversation.
func (s *VoiceService) Speak(ctx context.Context, text, voiceID string) (*SpeechResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	return s.speak(ctx, text, voiceID, uuid.Nil)
}

// Voices lists the synthesizer's voices. The catalogue is cached for a few
// minutes; failures are not cached.
func (s *VoiceService) Voices(ctx context.Context) ([]speech.Voice, error) {
	if voices, ok := s.voices.Get(voicesCacheKey); ok {
		return voices, nil
	}
	voices, err := s.synthesizer.Voices(ctx)
	if err != nil {
		return nil, err
	}
	s.voices.Set(voicesCacheKey, voices, voicesCacheTTL)
	return voices, nil
}

// ForgetVoices drops the cached catalogue, e.g. after the TTS key changed.
func (s *VoiceService) ForgetVoices() {
	s.voices.Clear()
}

func (s *VoiceService) speak(ctx context.Context, text, voiceID string, conversationID uuid.UUID) (*SpeechResult, error) {
	data, err := s.synthesizer.Synthesize(ctx, text, firstNonBlank(voiceID, s.cfg.TTS.DefaultVoiceID))
	if err != nil {
		return nil, err
	}

	result := &SpeechResult{AudioBase64: base64.StdEncoding.EncodeToString(data)}
	log := s.logger.WithField("conversation_id", conversationID)
	if stored := s.storeAudio(ctx, log, conversationID, synthesizedContentType, data); stored != nil {
		result.AudioID = &stored.ID
	}
	return result, nil
}

func (s *VoiceService) storeAudio(ctx context.Context, log logrus.FieldLogger, conversationID uuid.UUID, contentType string, data []byte) *repository.AudioFile {
	if s.audio == nil {
		return nil
	}
	stored, err := s.audio.Store(ctx, conversationID, contentType, data)
	if err != nil {
		log.WithError(err).Warn("Failed to store audio")
		return nil
	}
	return stored
}

func (s *VoiceService) validate(req VoiceRequest) error {
	if !s.allowedContentType(req.ContentType) {
		return fmt.Errorf("%w: %s", ErrInvalidContentType, req.ContentType)
	}
	if len(req.Audio) == 0 {
		return ErrEmptyAudio
	}
	if limit := s.cfg.Audio.MaxUploadBytes; limit > 0 && len(req.Audio) > limit {
		return fmt.Errorf("%w: %d bytes", ErrAudioTooLarge, len(req.Audio))
	}
	if req.ModelID != "" && !s.cfg.STT.HasModel(req.ModelID) {
		return fmt.Errorf("%w: %s", ErrInvalidModel, req.ModelID)
	}
	return nil
}

func (s *VoiceService) allowedContentType(contentType string) bool {
	for _, allowed := range s.cfg.Audio.AllowedContentTypes {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

func (s *VoiceService) conversation(ctx context.Context, req VoiceRequest) (*repository.Conversation, error) {
	if req.ConversationID != nil {
		return s.conversations.Get(ctx, *req.ConversationID)
	}
	return s.conversations.Create(ctx, CreateConversationRequest{
		VoiceID:    req.VoiceID,
		STTModelID: req.ModelID,
	})
}
