package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const deadlineSettingsKey = "deadlines"

// SettingsRepository stores collaborator documents in the settings table.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) DeadlineDays(ctx context.Context) (map[string]int, error) {
	var value []byte

	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = $1", deadlineSettingsKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read deadline settings: %w", err)
	}

	var days map[string]int
	if err := json.Unmarshal(value, &days); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deadline settings: %w", err)
	}

	return days, nil
}

func (r *SettingsRepository) SaveDeadlineDays(ctx context.Context, days map[string]int) error {
	value, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("failed to marshal deadline settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, deadlineSettingsKey, value)
	if err != nil {
		return fmt.Errorf("failed to save deadline settings: %w", err)
	}

	return nil
}
