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

// AudioRepository implements repository.AudioRepository using PostgreSQL
type AudioRepository struct {
	db *sqlx.DB
}

func NewAudioRepository(db *sqlx.DB) *AudioRepository {
	return &AudioRepository{db: db}
}

// Save stores the audio. ExpiresAt must be set by the caller.
func (r *AudioRepository) Save(ctx context.Context, audio *repository.AudioFile) error {
	if audio.ID == uuid.Nil {
		audio.ID = uuid.New()
	}
	if audio.CreatedAt.IsZero() {
		audio.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audio_files (id, conversation_id, content_type, data, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		audio.ID, audio.ConversationID, audio.ContentType, audio.Data, audio.CreatedAt, audio.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save audio: %w", err)
	}
	return nil
}

// Get returns unexpired audio by ID
func (r *AudioRepository) Get(ctx context.Context, id uuid.UUID) (*repository.AudioFile, error) {
	var audio repository.AudioFile
	query := `
		SELECT id, conversation_id, content_type, data, created_at, expires_at
		FROM audio_files
		WHERE id = $1 AND expires_at > $2
	`

	err := r.db.GetContext(ctx, &audio, query, id, time.Now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &audio, nil
}

// DeleteExpired removes audio that expired before now.
func (r *AudioRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM audio_files WHERE expires_at <= $1", now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audio: %w", err)
	}
	return result.RowsAffected()
}
