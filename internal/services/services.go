package services

import (
	"github.com/sirupsen/logrus"

	"github.com/voxmind/voxmind-backend/internal/config"
	"github.com/voxmind/voxmind-backend/internal/keys"
	"github.com/voxmind/voxmind-backend/internal/memory"
	"github.com/voxmind/voxmind-backend/internal/providers"
	"github.com/voxmind/voxmind-backend/internal/providers/openai"
	"github.com/voxmind/voxmind-backend/internal/repository"
	"github.com/voxmind/voxmind-backend/internal/speech"
)

// Repositories groups the storage the services are built on.
type Repositories struct {
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	Memory        repository.MemoryRepository
	Audio         repository.AudioRepository
}

// Services holds all service instances
type Services struct {
	Conversations *ConversationService
	Chat          *ChatService
	Voice         *VoiceService
	Audio         *AudioService

	Summarizer *memory.Summarizer
	Dispatcher *memory.Dispatcher
	Tokens     *memory.TokenEstimator
	Keys       *keys.Keyring

	// Shared by every external API client.
	Breaker *providers.CircuitBreaker
	Metrics *providers.MetricsCollector

	Config *config.Config
	Logger logrus.FieldLogger
}

// NewServices creates all service instances
func NewServices(cfg *config.Config, repos Repositories, keyring *keys.Keyring, logger logrus.FieldLogger) *Services {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	breaker := providers.NewCircuitBreaker(logger.WithField("component", "breaker"))
	metrics := providers.NewMetricsCollector()

	completer := openai.NewProvider(cfg.OpenAI, keyring, breaker, metrics, logger.WithField("component", "openai"))
	transcriber := speech.NewHuggingFaceClient(cfg.STT, keyring, breaker, metrics, logger.WithField("component", "stt"))
	synthesizer := speech.NewElevenLabsClient(cfg.TTS, keyring, breaker, metrics, logger.WithField("component", "tts"))

	memoryLog := logger.WithField("component", "memory")
	memoryCfg := MemoryConfig(cfg.Memory)
	summarizer := memory.NewSummarizer(memoryCfg, completer, NewMemoryStore(repos.Messages, repos.Memory), memoryLog)
	dispatcher := memory.NewDispatcher(summarizer.Summarize, memoryLog)
	optimizer := memory.NewHistoryOptimizer(memoryCfg, memoryLog)

	conversations := NewConversationService(repos.Conversations, repos.Messages, repos.Memory, cfg, logger)
	tokens := memory.NewTokenEstimator()
	chat := NewChatService(conversations, completer, optimizer, dispatcher, tokens, logger)
	audio := NewAudioService(repos.Audio, cfg.Audio, logger)
	voice := NewVoiceService(conversations, chat, transcriber, synthesizer, audio, cfg, logger)

	return &Services{
		Conversations: conversations,
		Chat:          chat,
		Voice:         voice,
		Audio:         audio,
		Summarizer:    summarizer,
		Dispatcher:    dispatcher,
		Tokens:        tokens,
		Keys:          keyring,
		Breaker:       breaker,
		Metrics:       metrics,
		Config:        cfg,
		Logger:        logger,
	}
}

// Shutdown stops scheduled work and waits for background summaries.
func (s *Services) Shutdown() {
	s.Audio.Stop()
	s.Dispatcher.Wait()
}

// MemoryConfig converts the memory configuration section.
func MemoryConfig(cfg config.MemoryConfig) memory.Config {
	return memory.Config{
		Enabled:            cfg.Enabled,
		MaxMessages:        cfg.MaxMessages,
		SummarizeThreshold: cfg.SummarizeThreshold,
	}
}
