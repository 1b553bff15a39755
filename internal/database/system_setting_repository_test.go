package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carenest/therapy-booking/internal/models"
)

var settingRowColumns = []string{"id", "setting_key", "setting_value", "description", "version", "created_at", "updated_at"}

func TestSystemSettingRepository_GetByKeys(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSystemSettingRepository(&PostgresDB{DB: db})
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM system_settings WHERE setting_key IN \(\$1,\$2\)`).
		WithArgs(models.SettingPlatformSettlementRate, models.SettingRemittanceBankName).
		WillReturnRows(sqlmock.NewRows(settingRowColumns).
			AddRow(uuid.New().String(), models.SettingPlatformSettlementRate, "5", nil, 2, now, now))

	settings, err := repo.GetByKeys(context.Background(), []string{
		models.SettingPlatformSettlementRate, models.SettingRemittanceBankName,
	})
	require.NoError(t, err)
	require.Len(t, settings, 1)
	assert.Equal(t, "5", settings[models.SettingPlatformSettlementRate].SettingValue)
	assert.Equal(t, 2, settings[models.SettingPlatformSettlementRate].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSystemSettingRepository_Update(t *testing.T) {
	t.Run("bumps version", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewSystemSettingRepository(&PostgresDB{DB: db})
		now := time.Now()

		mock.ExpectQuery(`UPDATE system_settings SET setting_value = \$1, version = version \+ 1`).
			WithArgs("7", models.SettingPlatformSettlementRate).
			WillReturnRows(sqlmock.NewRows(settingRowColumns).
				AddRow(uuid.New().String(), models.SettingPlatformSettlementRate, "7", nil, 3, now, now))

		setting, err := repo.Update(context.Background(), models.SettingPlatformSettlementRate, "7")
		require.NoError(t, err)
		assert.Equal(t, 3, setting.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown key", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewSystemSettingRepository(&PostgresDB{DB: db})

		mock.ExpectQuery(`UPDATE system_settings`).
			WillReturnRows(sqlmock.NewRows(settingRowColumns))

		_, err := repo.Update(context.Background(), "nope", "1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
