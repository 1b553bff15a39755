package database

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/carenest/therapy-booking/internal/models"
)

// SystemSettingRepository handles database operations for system_settings table
type SystemSettingRepository struct {
	db DB
}

// NewSystemSettingRepository creates a new SystemSettingRepository
func NewSystemSettingRepository(db DB) *SystemSettingRepository {
	return &SystemSettingRepository{db: db}
}

const systemSettingColumns = `id, setting_key, setting_value, description, version, created_at, updated_at`

// GetAll retrieves all system settings
func (r *SystemSettingRepository) GetAll(ctx context.Context) ([]models.SystemSetting, error) {
	settings := []models.SystemSetting{}
	err := r.db.SelectContext(ctx, &settings,
		`SELECT `+systemSettingColumns+` FROM system_settings ORDER BY setting_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to get system settings: %w", err)
	}
	return settings, nil
}

// GetByKey retrieves a system setting by its key; ErrNotFound if absent
func (r *SystemSettingRepository) GetByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	var setting models.SystemSetting
	err := r.db.GetContext(ctx, &setting,
		`SELECT `+systemSettingColumns+` FROM system_settings WHERE setting_key = $1`, key)
	if err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get system setting %s: %w", key, err)
	}
	return &setting, nil
}

// GetByKeys returns the settings present among keys, keyed by setting_key
func (r *SystemSettingRepository) GetByKeys(ctx context.Context, keys []string) (map[string]models.SystemSetting, error) {
	query, args, err := psql.Select(systemSettingColumns).
		From("system_settings").
		Where(squirrel.Eq{"setting_key": keys}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build settings query: %w", err)
	}

	rows := []models.SystemSetting{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get system settings: %w", err)
	}

	settings := make(map[string]models.SystemSetting, len(rows))
	for _, s := range rows {
		settings[s.SettingKey] = s
	}
	return settings, nil
}

// Update sets a value and bumps its version. Returns ErrNotFound for unknown keys.
func (r *SystemSettingRepository) Update(ctx context.Context, key, value string) (*models.SystemSetting, error) {
	var setting models.SystemSetting
	err := r.db.QueryRowxContext(ctx, `
		UPDATE system_settings
		SET setting_value = $1, version = version + 1, updated_at = NOW()
		WHERE setting_key = $2
		RETURNING `+systemSettingColumns, value, key).StructScan(&setting)
	if err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update system setting %s: %w", key, err)
	}
	return &setting, nil
}
