package services

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/voxmind/voxmind-backend/internal/memory"
	"github.com/voxmind/voxmind-backend/internal/repository"
)

// MemoryStore adapts the message and summary repositories to memory.Store.
type MemoryStore struct {
	messages  repository.MessageRepository
	summaries repository.MemoryRepository
}

func NewMemoryStore(messages repository.MessageRepository, summaries repository.MemoryRepository) *MemoryStore {
	return &MemoryStore{messages: messages, summaries: summaries}
}

func (s *MemoryStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]memory.Message, error) {
	rows, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return toMemoryMessages(rows), nil
}

func (s *MemoryStore) UpsertSummary(ctx context.Context, conversationID uuid.UUID, summary string) error {
	return s.summaries.Upsert(ctx, conversationID, summary)
}

func toMemoryMessages(rows []repository.Message) []memory.Message {
	messages := make([]memory.Message, len(rows))
	for i, row := range rows {
		messages[i] = memory.Message{
			Role:       memory.Role(row.Role),
			Content:    row.Content,
			Timestamp:  row.CreatedAt,
			Importance: fromNullFloat(row.Importance),
		}
	}
	return messages
}

func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func toNullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
