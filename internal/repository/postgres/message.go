package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/voxmind/voxmind-backend/internal/repository"
)

// MessageRepository implements repository.MessageRepository using PostgreSQL
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts the messages and bumps the conversation's message count in
// one transaction, returning the new count.
func (r *MessageRepository) Create(ctx context.Context, messages ...*repository.Message) (int, error) {
	if len(messages) == 0 {
		return 0, fmt.Errorf("no messages to insert")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertMessages(ctx, tx, messages); err != nil {
		return 0, err
	}

	last := messages[len(messages)-1]
	var count int
	err = tx.GetContext(ctx, &count, `
		UPDATE conversations
		SET message_count = message_count + $3, updated_at = $2
		WHERE id = $1
		RETURNING message_count
	`, last.ConversationID, last.CreatedAt, len(messages))
	if err != nil {
		return 0, fmt.Errorf("failed to update message count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit messages: %w", err)
	}
	return count, nil
}

// insertMessages assigns missing IDs and timestamps and inserts the messages
// in order. Timestamps step by a microsecond so a batch keeps its order.
func insertMessages(ctx context.Context, tx *sqlx.Tx, messages []*repository.Message) error {
	now := time.Now()
	query := `
		INSERT INTO messages (id, conversation_id, role, content, importance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, message := range messages {
		if message.ID == uuid.Nil {
			message.ID = uuid.New()
		}
		if message.CreatedAt.IsZero() {
			message.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
		if _, err := tx.ExecContext(ctx, query,
			message.ID, message.ConversationID, message.Role, message.Content, message.Importance, message.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert %s message: %w", message.Role, err)
		}
	}
	return nil
}

// ListByConversation retrieves messages for a conversation in chronological order
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]repository.Message, error) {
	messages := []repository.Message{}
	query := `
		SELECT id, conversation_id, role, content, importance, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	if err := r.db.SelectContext(ctx, &messages, query, conversationID); err != nil {
		return nil, err
	}
	return messages, nil
}
