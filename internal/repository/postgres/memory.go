package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/voxmind/voxmind-backend/internal/repository"
)

// MemoryRepository stores conversation summaries in memory_summaries.
type MemoryRepository struct {
	db *sqlx.DB
}

func NewMemoryRepository(db *sqlx.DB) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// Get returns the conversation's summary, or nil when none has been stored.
func (r *MemoryRepository) Get(ctx context.Context, conversationID uuid.UUID) (*repository.MemorySummary, error) {
	var summary repository.MemorySummary
	query := `
		SELECT id, conversation_id, summary, created_at, updated_at
		FROM memory_summaries
		WHERE conversation_id = $1
	`

	err := r.db.GetContext(ctx, &summary, query, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

// Upsert creates the summary or replaces its text in a single statement.
func (r *MemoryRepository) Upsert(ctx context.Context, conversationID uuid.UUID, summary string) error {
	now := time.Now()
	query := `
		INSERT INTO memory_summaries (id, conversation_id, summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (conversation_id)
		DO UPDATE SET summary = EXCLUDED.summary, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, uuid.New(), conversationID, summary, now); err != nil {
		return fmt.Errorf("failed to upsert memory summary: %w", err)
	}
	return nil
}
