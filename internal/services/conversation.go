package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voxmind/voxmind-backend/internal/config"
	"github.com/voxmind/voxmind-backend/internal/memory"
	"github.com/voxmind/voxmind-backend/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ConversationService manages conversations and their stored messages.
type ConversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	summaries     repository.MemoryRepository
	cfg           *config.Config
	logger        logrus.FieldLogger
}

func NewConversationService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	summaries repository.MemoryRepository,
	cfg *config.Config,
	logger logrus.FieldLogger,
) *ConversationService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		summaries:     summaries,
		cfg:           cfg,
		logger:        logger,
	}
}

// CreateConversationRequest carries the optional creation parameters; blank
// fields take the configured defaults.
type CreateConversationRequest struct {
	SystemPrompt string `json:"system_prompt"`
	VoiceID      string `json:"voice_id"`
	STTModelID   string `json:"stt_model_id"`
}

// ConversationPage is one page of List results.
type ConversationPage struct {
	Conversations []*repository.Conversation `json:"conversations"`
	Total         int                        `json:"total"`
	Page          int                        `json:"page"`
	Limit         int                        `json:"limit"`
	Pages         int                        `json:"pages"`
}

// Create stores a new conversation and its initial system message.
func (s *ConversationService) Create(ctx context.Context, req CreateConversationRequest) (*repository.Conversation, error) {
	conversation := &repository.Conversation{
		SystemPrompt: firstNonBlank(req.SystemPrompt, s.cfg.Conversation.DefaultSystemPrompt),
		VoiceID:      firstNonBlank(req.VoiceID, s.cfg.TTS.DefaultVoiceID),
		STTModelID:   firstNonBlank(req.STTModelID, s.cfg.STT.DefaultModel),
	}
	if !s.cfg.STT.HasModel(conversation.STTModelID) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidModel, conversation.STTModelID)
	}

	system := &repository.Message{Role: string(memory.RoleSystem), Content: conversation.SystemPrompt}
	if err := s.conversations.Create(ctx, conversation, system); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.logger.WithField("conversation_id", conversation.ID).Info("Created conversation")
	return conversation, nil
}

// Get returns the conversation or ErrConversationNotFound.
func (s *ConversationService) Get(ctx context.Context, id uuid.UUID) (*repository.Conversation, error) {
	conversation, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

// List returns conversations newest first. limit is clamped to [1, 100] and
// defaults to 10.
func (s *ConversationService) List(ctx context.Context, limit, skip int) (*ConversationPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if skip < 0 {
		skip = 0
	}

	conversations, err := s.conversations.List(ctx, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	total, err := s.conversations.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}
	if conversations == nil {
		conversations = []*repository.Conversation{}
	}

	return &ConversationPage{
		Conversations: conversations,
		Total:         total,
		Page:          skip/limit + 1,
		Limit:         limit,
		Pages:         (total + limit - 1) / limit,
	}, nil
}

// Update changes the given fields and returns the updated conversation.
func (s *ConversationService) Update(ctx context.Context, id uuid.UUID, update repository.ConversationUpdate) (*repository.Conversation, error) {
	if update.STTModelID != nil && !s.cfg.STT.HasModel(*update.STTModelID) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidModel, *update.STTModelID)
	}
	if update.Empty() {
		return s.Get(ctx, id)
	}

	found, err := s.conversations.Update(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	if !found {
		return nil, ErrConversationNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes the conversation. Messages, summary and audio cascade.
func (s *ConversationService) Delete(ctx context.Context, id uuid.UUID) error {
	found, err := s.conversations.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if !found {
		return ErrConversationNotFound
	}
	s.logger.WithField("conversation_id", id).Info("Deleted conversation")
	return nil
}

// AddMessage stores a message and returns the conversation's new message count.
func (s *ConversationService) AddMessage(ctx context.Context, id uuid.UUID, role memory.Role, content string, importance *float64) (int, error) {
	if !role.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	count, err := s.messages.Create(ctx, &repository.Message{
		ConversationID: id,
		Role:           string(role),
		Content:        content,
		Importance:     toNullFloat(importance),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add %s message: %w", role, err)
	}

	s.logger.WithFields(logrus.Fields{
		"conversation_id": id,
		"role":            role,
		"count":           count,
	}).Debug("Added message")
	return count, nil
}

// AddExchange stores a user message and the assistant's reply together, so a
// turn is either fully recorded or not at all. It returns the new count.
func (s *ConversationService) AddExchange(ctx context.Context, id uuid.UUID, user, assistant string) (int, error) {
	count, err := s.messages.Create(ctx,
		&repository.Message{ConversationID: id, Role: string(memory.RoleUser), Content: user},
		&repository.Message{ConversationID: id, Role: string(memory.RoleAssistant), Content: assistant},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add exchange: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"conversation_id": id,
		"count":           count,
	}).Debug("Added exchange")
	return count, nil
}

// History returns the conversation with its non-system messages.
func (s *ConversationService) History(ctx context.Context, id uuid.UUID) (*repository.Conversation, []memory.Message, error) {
	conversation, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.messages.ListByConversation(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return conversation, conversational(toMemoryMessages(rows)), nil
}

// ExtractContext builds the history sent to the completion model: the system
// prompt, the stored summary when memory is enabled and one exists, then every
// non-system message in order.
func (s *ConversationService) ExtractContext(ctx context.Context, id uuid.UUID) (*repository.Conversation, []memory.Message, error) {
	conversation, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	log := s.logger.WithField("conversation_id", id)

	history := []memory.Message{{Role: memory.RoleSystem, Content: conversation.SystemPrompt}}

	if s.cfg.Memory.Enabled {
		summary, err := s.summaries.Get(ctx, id)
		if err != nil {
			log.WithError(err).Warn("Failed to load memory summary")
		} else if summary != nil && strings.TrimSpace(summary.Summary) != "" {
			history = append(history, memory.SummaryMessage(summary.Summary))
		}
	}

	rows, err := s.messages.ListByConversation(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list messages: %w", err)
	}
	history = append(history, conversational(toMemoryMessages(rows))...)

	return conversation, history, nil
}

// Summary returns the stored summary, or nil when the conversation has none.
func (s *ConversationService) Summary(ctx context.Context, id uuid.UUID) (*repository.MemorySummary, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	summary, err := s.summaries.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory summary: %w", err)
	}
	return summary, nil
}

func conversational(messages []memory.Message) []memory.Message {
	out := make([]memory.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role != memory.RoleSystem {
			out = append(out, msg)
		}
	}
	return out
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
