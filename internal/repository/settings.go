package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// SettingsRepository backs the feature-flag lookup. Keys are explicit; there
// is deliberately no pattern-matching over key names.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("Get: %w", err)
	}
	return value, nil
}

// GetBool returns false for a missing or unparsable value.
func (r *SettingsRepository) GetBool(ctx context.Context, key string) (bool, error) {
	raw, err := r.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("GetBool: %w", err)
	}
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, nil
	}
	return v, nil
}

func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}
