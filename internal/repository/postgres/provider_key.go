package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ProviderKeyRepository stores sealed provider API keys.
type ProviderKeyRepository struct {
	db *sqlx.DB
}

func NewProviderKeyRepository(db *sqlx.DB) *ProviderKeyRepository {
	return &ProviderKeyRepository{db: db}
}

// LoadProviderKeys returns every stored key keyed by provider name.
func (r *ProviderKeyRepository) LoadProviderKeys(ctx context.Context) (map[string][]byte, error) {
	var rows []struct {
		Name   string `db:"name"`
		Sealed []byte `db:"sealed_value"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT name, sealed_value FROM provider_keys`); err != nil {
		return nil, fmt.Errorf("failed to load provider keys: %w", err)
	}

	keys := make(map[string][]byte, len(rows))
	for _, row := range rows {
		keys[row.Name] = row.Sealed
	}
	return keys, nil
}

// SaveProviderKey inserts or replaces one key.
func (r *ProviderKeyRepository) SaveProviderKey(ctx context.Context, name string, sealed []byte) error {
	query := `
		INSERT INTO provider_keys (name, sealed_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name)
		DO UPDATE SET sealed_value = EXCLUDED.sealed_value, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, name, sealed); err != nil {
		return fmt.Errorf("failed to save provider key: %w", err)
	}
	return nil
}

// DeleteProviderKeys removes every stored key.
func (r *ProviderKeyRepository) DeleteProviderKeys(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM provider_keys`); err != nil {
		return fmt.Errorf("failed to delete provider keys: %w", err)
	}
	return nil
}
