package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Conversation is a voice or text conversation.
type Conversation struct {
	ID           uuid.UUID `db:"id"`
	SystemPrompt string    `db:"system_prompt"`
	VoiceID      string    `db:"voice_id"`
	STTModelID   string    `db:"stt_model_id"`
	MessageCount int       `db:"message_count"`
	// MemoryOptimized is derived from the presence of a memory summary row.
	MemoryOptimized bool      `db:"memory_optimized"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// ConversationUpdate lists the mutable conversation fields; nil means unchanged.
type ConversationUpdate struct {
	SystemPrompt *string
	VoiceID      *string
	STTModelID   *string
}

// Empty reports whether the update changes nothing.
func (u ConversationUpdate) Empty() bool {
	return u.SystemPrompt == nil && u.VoiceID == nil && u.STTModelID == nil
}

// Message represents a chat message
type Message struct {
	ID             uuid.UUID       `db:"id"`
	ConversationID uuid.UUID       `db:"conversation_id"`
	Role           string          `db:"role"`
	Content        string          `db:"content"`
	Importance     sql.NullFloat64 `db:"importance"`
	CreatedAt      time.Time       `db:"created_at"`
}

// MemorySummary is the persisted summary of a conversation's history.
type MemorySummary struct {
	ID             uuid.UUID `db:"id"`
	ConversationID uuid.UUID `db:"conversation_id"`
	Summary        string    `db:"summary"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// AudioFile is uploaded or synthesized audio kept until ExpiresAt.
type AudioFile struct {
	ID             uuid.UUID     `db:"id"`
	ConversationID uuid.NullUUID `db:"conversation_id"`
	ContentType    string        `db:"content_type"`
	Data           []byte        `db:"data"`
	CreatedAt      time.Time     `db:"created_at"`
	ExpiresAt      time.Time     `db:"expires_at"`
}

// ConversationRepository defines conversation storage operations
type ConversationRepository interface {
	// Create stores the conversation and its initial messages atomically.
	Create(ctx context.Context, conversation *Conversation, initial ...*Message) error
	Get(ctx context.Context, id uuid.UUID) (*Conversation, error)
	List(ctx context.Context, limit, offset int) ([]*Conversation, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, id uuid.UUID, update ConversationUpdate) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// MessageRepository defines message storage operations
type MessageRepository interface {
	// Create stores the messages atomically and returns the conversation's new
	// message count.
	Create(ctx context.Context, messages ...*Message) (int, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
}

// MemoryRepository stores one summary per conversation.
type MemoryRepository interface {
	Get(ctx context.Context, conversationID uuid.UUID) (*MemorySummary, error)
	Upsert(ctx context.Context, conversationID uuid.UUID, summary string) error
}

// AudioRepository defines audio storage operations
type AudioRepository interface {
	Save(ctx context.Context, audio *AudioFile) error
	// Get returns nil for unknown or expired audio.
	Get(ctx context.Context, id uuid.UUID) (*AudioFile, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ProviderKeyRepository persists sealed provider API keys.
type ProviderKeyRepository interface {
	LoadProviderKeys(ctx context.Context) (map[string][]byte, error)
	SaveProviderKey(ctx context.Context, name string, sealed []byte) error
	DeleteProviderKeys(ctx context.Context) error
}
