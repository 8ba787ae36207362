package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-kpi/internal/models"
)

// ConfigurationRepository stores operator settings and the source layout as
// JSONB documents keyed by name.
type ConfigurationRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewConfigurationRepository constructs the repository.
func NewConfigurationRepository(db *sqlx.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db, now: time.Now}
}

// GetSettings loads the settings document.
func (r *ConfigurationRepository) GetSettings(ctx context.Context) (*models.AppSettings, error) {
	var settings models.AppSettings
	updatedAt, err := r.get(ctx, models.ConfigKeySettings, &settings)
	if err != nil {
		return nil, err
	}
	settings.UpdatedAt = updatedAt
	return &settings, nil
}

// SaveSettings upserts the settings document.
func (r *ConfigurationRepository) SaveSettings(ctx context.Context, settings *models.AppSettings) error {
	settings.UpdatedAt = r.now().UTC()
	return r.put(ctx, models.ConfigKeySettings, settings, settings.UpdatedAt)
}

// GetSources loads the stored source layout.
func (r *ConfigurationRepository) GetSources(ctx context.Context) (*models.SourceLayout, error) {
	var layout models.SourceLayout
	if _, err := r.get(ctx, models.ConfigKeySources, &layout); err != nil {
		return nil, err
	}
	return &layout, nil
}

// SaveSources upserts the source layout.
func (r *ConfigurationRepository) SaveSources(ctx context.Context, layout *models.SourceLayout) error {
	return r.put(ctx, models.ConfigKeySources, layout, r.now().UTC())
}

func (r *ConfigurationRepository) get(ctx context.Context, key string, dest interface{}) (time.Time, error) {
	var row struct {
		Value     []byte    `db:"value"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	if err := r.db.GetContext(ctx, &row, `SELECT value, updated_at FROM app_config WHERE key = $1`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("get config %s: %w", key, err)
	}
	if err := json.Unmarshal(row.Value, dest); err != nil {
		return time.Time{}, fmt.Errorf("decode config %s: %w", key, err)
	}
	return row.UpdatedAt, nil
}

func (r *ConfigurationRepository) put(ctx context.Context, key string, value interface{}, at time.Time) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode config %s: %w", key, err)
	}
	const query = `INSERT INTO app_config (key, value, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, key, payload, at); err != nil {
		return fmt.Errorf("upsert config %s: %w", key, err)
	}
	return nil
}
