package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ConfigRepository stores generic key/value system configuration. The
// current-week pointer and the rollover stamp live here.
type ConfigRepository struct {
	db *sqlx.DB
}

// NewConfigRepository constructs a new repository.
func NewConfigRepository(db *sqlx.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Get returns the value for a key; ok is false when the key is unset.
func (r *ConfigRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	if err := r.db.GetContext(ctx, &value, "SELECT value FROM system_config WHERE key = $1", key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get config %s: %w", key, err)
	}
	return value, true, nil
}

// GetTx reads a key inside tx so week assignment and the ledger write share
// one consistent snapshot.
func (r *ConfigRepository) GetTx(ctx context.Context, tx *sqlx.Tx, key string) (string, bool, error) {
	var value string
	if err := tx.GetContext(ctx, &value, "SELECT value FROM system_config WHERE key = $1", key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get config %s: %w", key, err)
	}
	return value, true, nil
}

// SetTx upserts a key inside tx.
func (r *ConfigRepository) SetTx(ctx context.Context, tx *sqlx.Tx, key, value string) error {
	query := `INSERT INTO system_config (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := tx.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

// Set upserts a key outside any caller transaction.
func (r *ConfigRepository) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO system_config (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}
