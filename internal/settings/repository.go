package settings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles database operations for system settings
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new settings repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetAll returns every system setting row
func (r *Repository) GetAll(ctx context.Context) ([]*Setting, error) {
	query := `
		SELECT key, value, description, updated_at
		FROM system_settings
		ORDER BY key
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	items := make([]*Setting, 0)
	for rows.Next() {
		s := &Setting{}
		if err := rows.Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// Get returns a single setting by key
func (r *Repository) Get(ctx context.Context, key string) (*Setting, error) {
	query := `
		SELECT key, value, description, updated_at
		FROM system_settings WHERE key = $1
	`
	s := &Setting{}
	err := r.db.QueryRow(ctx, query, key).Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return s, nil
}

// Set upserts a setting value
func (r *Repository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO system_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}
