package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSettingNotFound is returned when a setting key has never been written.
var ErrSettingNotFound = errors.New("setting not found")

// Well-known setting keys.
const (
	SettingFxRateUSDIDR         = "fx_rate_usd_idr"
	SettingDefaultMarkupPercent = "default_markup_percent"
)

// SettingRepository handles all database operations for the key-value
// settings table backing the USD/IDR rate and default markup fallback.
type SettingRepository struct {
	db *pgxpool.Pool
}

// NewSettingRepository creates a new setting repository instance.
func NewSettingRepository(db *DB) *SettingRepository {
	return &SettingRepository{db: db.pool}
}

// Get retrieves a setting's raw string value. Returns ErrSettingNotFound if unset.
func (r *SettingRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSettingNotFound
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}

	return value, nil
}

// GetEntry retrieves a setting's full row, including when it was last
// written, so a caller can apply its own freshness policy. Returns
// ErrSettingNotFound if unset.
func (r *SettingRepository) GetEntry(ctx context.Context, key string) (*Setting, error) {
	var s Setting
	err := r.db.QueryRow(ctx, `SELECT key, value, updated_at FROM settings WHERE key = $1`, key).
		Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingNotFound
		}
		return nil, fmt.Errorf("failed to get setting entry %s: %w", key, err)
	}

	return &s, nil
}

// Upsert writes a setting's value, creating the row if it doesn't exist yet.
func (r *SettingRepository) Upsert(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert setting %s: %w", key, err)
	}

	return nil
}
