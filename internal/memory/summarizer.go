package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voxmind/voxmind-backend/internal/providers"
)

const (
	summarizerSystemPrompt = "You are a helpful assistant that summarizes conversations."
	summarizeInstruction   = "Summarize the following conversation in a concise paragraph. " +
		"Focus on key topics, questions, and information exchanged. " +
		"Keep your summary under 150 words.\n\n"

	summaryTemperature = 0.3
	summaryMaxTokens   = 200
)

// Store is the persistence the summarizer reads messages from and writes
// summaries to.
type Store interface {
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
	// UpsertSummary replaces the conversation's summary, creating it when absent.
	UpsertSummary(ctx context.Context, conversationID uuid.UUID, summary string) error
}

// Summarizer produces the durable summary of a conversation. Every failure is
// logged and reported as false; nothing is returned as an error because
// summarization must never fail a chat turn.
type Summarizer struct {
	cfg       Config
	completer providers.Completer
	store     Store
	logger    logrus.FieldLogger
}

// NewSummarizer creates a summarizer. A nil completer disables it.
func NewSummarizer(cfg Config, completer providers.Completer, store Store, logger logrus.FieldLogger) *Summarizer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Summarizer{
		cfg:       cfg,
		completer: completer,
		store:     store,
		logger:    logger,
	}
}

// Enabled reports whether Summarize can do any work.
func (s *Summarizer) Enabled() bool {
	return s.cfg.Enabled && s.completer != nil && s.store != nil
}

// Summarize re-summarizes the whole non-system history of a conversation and
// upserts the result. It returns true only when a new summary was stored.
func (s *Summarizer) Summarize(ctx context.Context, conversationID uuid.UUID) bool {
	if !s.Enabled() {
		return false
	}
	log := s.logger.WithField("conversation_id", conversationID)

	messages, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		log.WithError(err).Error("Failed to load messages for summarization")
		return false
	}

	conversation := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role != RoleSystem {
			conversation = append(conversation, msg)
		}
	}
	if len(conversation) < s.cfg.SummarizeThreshold {
		return false
	}

	resp, err := s.completer.Complete(ctx, providers.CompletionRequest{
		Messages: []providers.Message{
			{Role: string(RoleSystem), Content: summarizerSystemPrompt},
			{Role: string(RoleUser), Content: summarizeInstruction + Transcript(conversation)},
		},
		Temperature: providers.Float32(summaryTemperature),
		MaxTokens:   providers.Int(summaryMaxTokens),
	})
	if err != nil {
		log.WithError(err).Warn("Summary completion failed")
		return false
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		log.Warn("Summary completion returned no text")
		return false
	}

	if err := s.store.UpsertSummary(ctx, conversationID, summary); err != nil {
		log.WithError(err).Error("Failed to store memory summary")
		return false
	}

	log.WithField("messages", len(conversation)).Info("Updated memory summary")
	return true
}

// Transcript renders messages as "Role: content" blocks separated by blank lines.
func Transcript(messages []Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		sb.WriteString(capitalize(string(msg.Role)))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
