package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/voxmind/voxmind-backend/internal/repository"
)

const conversationColumns = `
	c.id, c.system_prompt, c.voice_id, c.stt_model_id, c.message_count, c.created_at, c.updated_at,
	EXISTS (SELECT 1 FROM memory_summaries s WHERE s.conversation_id = c.id) AS memory_optimized`

// ConversationRepository implements repository.ConversationRepository using PostgreSQL
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository creates a new PostgreSQL conversation repository
func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts the conversation together with its initial messages in one
// transaction, assigning an ID and timestamps when missing.
func (r *ConversationRepository) Create(ctx context.Context, conversation *repository.Conversation, initial ...*repository.Message) error {
	if conversation.ID == uuid.Nil {
		conversation.ID = uuid.New()
	}
	now := time.Now()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now
	conversation.MessageCount = len(initial)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO conversations (id, system_prompt, voice_id, stt_model_id, message_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.ExecContext(ctx, query,
		conversation.ID, conversation.SystemPrompt, conversation.VoiceID, conversation.STTModelID,
		conversation.MessageCount, conversation.CreatedAt, conversation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	for _, message := range initial {
		message.ConversationID = conversation.ID
	}
	if err := insertMessages(ctx, tx, initial); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversation: %w", err)
	}
	return nil
}

// Get retrieves a conversation by ID
func (r *ConversationRepository) Get(ctx context.Context, id uuid.UUID) (*repository.Conversation, error) {
	var conversation repository.Conversation
	query := `SELECT ` + conversationColumns + ` FROM conversations c WHERE c.id = $1`

	err := r.db.GetContext(ctx, &conversation, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &conversation, nil
}

// List returns conversations, most recently updated first.
func (r *ConversationRepository) List(ctx context.Context, limit, offset int) ([]*repository.Conversation, error) {
	conversations := []*repository.Conversation{}
	query := `SELECT ` + conversationColumns + `
		FROM conversations c
		ORDER BY c.updated_at DESC
		LIMIT $1 OFFSET $2`

	if err := r.db.SelectContext(ctx, &conversations, query, limit, offset); err != nil {
		return nil, err
	}
	return conversations, nil
}

// Count returns the total number of conversations.
func (r *ConversationRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM conversations`); err != nil {
		return 0, err
	}
	return total, nil
}

// Update applies the non-nil fields. It reports whether the conversation exists.
func (r *ConversationRepository) Update(ctx context.Context, id uuid.UUID, update repository.ConversationUpdate) (bool, error) {
	sets := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.SystemPrompt != nil {
		add("system_prompt", *update.SystemPrompt)
	}
	if update.VoiceID != nil {
		add("voice_id", *update.VoiceID)
	}
	if update.STTModelID != nil {
		add("stt_model_id", *update.STTModelID)
	}
	add("updated_at", time.Now())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE conversations SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Delete removes the conversation; messages, summary and audio cascade.
func (r *ConversationRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
