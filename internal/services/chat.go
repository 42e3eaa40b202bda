package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voxmind/voxmind-backend/internal/memory"
	"github.com/voxmind/voxmind-backend/internal/providers"
)

// TurnRequest is one user message in a stored conversation. Zero-valued
// overrides use the completion defaults.
type TurnRequest struct {
	ConversationID uuid.UUID
	Message        string
	Model          string
	Temperature    *float32
	MaxTokens      *int
}

// MemoryStats reports what the optimizer did to a turn's history.
type MemoryStats struct {
	OriginalHistorySize   int  `json:"original_history_size"`
	OptimizedHistorySize  int  `json:"optimized_history_size"`
	MemoryEnabled         bool `json:"memory_enabled"`
	MemoryOptimized       bool `json:"memory_optimized"`
	EstimatedTokensBefore int  `json:"estimated_tokens_before"`
	EstimatedTokensAfter  int  `json:"estimated_tokens_after"`
}

// TurnResult is the outcome of a chat turn.
type TurnResult struct {
	ConversationID uuid.UUID        `json:"conversation_id"`
	Response       string           `json:"response"`
	Model          string           `json:"model"`
	Usage          providers.Usage  `json:"usage"`
	History        []memory.Message `json:"conversation_history"`
	MemoryStats    MemoryStats      `json:"memory_stats"`
	// SummaryScheduled is true when this turn started a background summarization.
	SummaryScheduled bool `json:"summary_scheduled"`
}

// CompletionResult is the outcome of a stateless completion.
type CompletionResult struct {
	Response    string          `json:"response"`
	Model       string          `json:"model"`
	Usage       providers.Usage `json:"usage"`
	MemoryStats MemoryStats     `json:"memory_stats"`
}

// ChatService runs chat turns: it bounds the history with the optimizer,
// calls the completion model, persists both sides of the exchange and
// schedules summarization once the conversation is long enough.
type ChatService struct {
	conversations *ConversationService
	completer     providers.Completer
	optimizer     *memory.HistoryOptimizer
	dispatcher    *memory.Dispatcher
	tokens        *memory.TokenEstimator
	logger        logrus.FieldLogger
}

// NewChatService creates a chat service. A nil dispatcher disables background
// summarization; a nil token estimator falls back to the heuristic one.
func NewChatService(
	conversations *ConversationService,
	completer providers.Completer,
	optimizer *memory.HistoryOptimizer,
	dispatcher *memory.Dispatcher,
	tokens *memory.TokenEstimator,
	logger logrus.FieldLogger,
) *ChatService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if tokens == nil {
		tokens = memory.NewHeuristicTokenEstimator()
	}
	return &ChatService{
		conversations: conversations,
		completer:     completer,
		optimizer:     optimizer,
		dispatcher:    dispatcher,
		tokens:        tokens,
		logger:        logger,
	}
}

// ProcessTurn answers req.Message within its conversation.
func (s *ChatService) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	conversation, history, err := s.conversations.ExtractContext(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	optimized := s.optimizer.Optimize(history)
	stats := s.stats(history, optimized)
	stats.MemoryOptimized = conversation.MemoryOptimized

	log := s.logger.WithField("conversation_id", req.ConversationID)
	log.WithFields(logrus.Fields{
		"original":  stats.OriginalHistorySize,
		"optimized": stats.OptimizedHistorySize,
	}).Debug("Optimized conversation history")

	resp, err := s.completer.Complete(ctx, providers.CompletionRequest{
		Messages:    toProviderMessages(optimized, text),
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	count, err := s.conversations.AddExchange(ctx, req.ConversationID, text, resp.Content)
	if err != nil {
		return nil, err
	}

	result := &TurnResult{
		ConversationID: req.ConversationID,
		Response:       resp.Content,
		Model:          resp.Model,
		Usage:          resp.Usage,
		History: append(conversational(history),
			memory.Message{Role: memory.RoleUser, Content: text},
			memory.Message{Role: memory.RoleAssistant, Content: resp.Content},
		),
		MemoryStats: stats,
	}

	cfg := s.optimizer.Config()
	if cfg.Enabled && s.dispatcher != nil && count >= cfg.SummarizeThreshold {
		result.SummaryScheduled = s.dispatcher.Schedule(req.ConversationID)
		log.WithFields(logrus.Fields{
			"count":     count,
			"scheduled": result.SummaryScheduled,
		}).Debug("Summarization requested")
	}

	return result, nil
}

// Complete answers prompt against an explicit history that is not stored.
// The history is decoded leniently; malformed entries are dropped.
func (s *ChatService) Complete(ctx context.Context, prompt string, rawHistory json.RawMessage, model string) (*CompletionResult, error) {
	text := strings.TrimSpace(prompt)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	history := memory.DecodeHistory(rawHistory, s.logger)
	optimized := s.optimizer.Optimize(history)

	resp, err := s.completer.Complete(ctx, providers.CompletionRequest{
		Messages: toProviderMessages(optimized, text),
		Model:    model,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	return &CompletionResult{
		Response:    resp.Content,
		Model:       resp.Model,
		Usage:       resp.Usage,
		MemoryStats: s.stats(history, optimized),
	}, nil
}

func (s *ChatService) stats(history, optimized []memory.Message) MemoryStats {
	return MemoryStats{
		OriginalHistorySize:   len(history),
		OptimizedHistorySize:  len(optimized),
		MemoryEnabled:         s.optimizer.Config().Enabled,
		EstimatedTokensBefore: s.tokens.Count(history),
		EstimatedTokensAfter:  s.tokens.Count(optimized),
	}
}

func toProviderMessages(history []memory.Message, prompt string) []providers.Message {
	messages := make([]providers.Message, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, providers.Message{Role: string(msg.Role), Content: msg.Content})
	}
	return append(messages, providers.Message{Role: string(memory.RoleUser), Content: prompt})
}
