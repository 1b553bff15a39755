package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/carenest/therapy-booking/internal/config"
	"github.com/carenest/therapy-booking/internal/database"
	"github.com/carenest/therapy-booking/internal/models"
)

// SettingStore is the storage behind versioned system settings
type SettingStore interface {
	GetAll(ctx context.Context) ([]models.SystemSetting, error)
	GetByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	GetByKeys(ctx context.Context, keys []string) (map[string]models.SystemSetting, error)
	Update(ctx context.Context, key, value string) (*models.SystemSetting, error)
}

var settlementKeys = []string{
	models.SettingPlatformSettlementRate,
	models.SettingRemittanceBankName,
	models.SettingRemittanceAccountNumber,
	models.SettingRemittanceAccountHolder,
}

// SettlementConfigService reads the settlement configuration from system_settings,
// falling back to environment defaults for keys that have no row
type SettlementConfigService struct {
	store    SettingStore
	defaults config.BookingConfig
	logger   *logrus.Logger
}

// NewSettlementConfigService creates a new SettlementConfigService
func NewSettlementConfigService(store SettingStore, defaults config.BookingConfig, logger *logrus.Logger) *SettlementConfigService {
	return &SettlementConfigService{store: store, defaults: defaults, logger: logger}
}

// Current returns one consistent snapshot. Version is the sum of the row versions: every
// update bumps exactly one row by one, so the sum grows with each settlement change.
func (s *SettlementConfigService) Current(ctx context.Context) (models.SettlementConfig, error) {
	rows, err := s.store.GetByKeys(ctx, settlementKeys)
	if err != nil {
		return models.SettlementConfig{}, fmt.Errorf("failed to load settlement config: %w", err)
	}

	cfg := models.SettlementConfig{
		PlatformRatePercent: s.defaults.DefaultPlatformRatePercent,
		Remittance: models.RemittanceAccount{
			BankName:      s.defaults.RemittanceBankName,
			AccountNumber: s.defaults.RemittanceAccountNumber,
			AccountHolder: s.defaults.RemittanceAccountHolder,
		},
	}

	for key, row := range rows {
		cfg.Version += row.Version
		value := strings.TrimSpace(row.SettingValue)
		if value == "" {
			continue
		}
		switch key {
		case models.SettingPlatformSettlementRate:
			rate, err := parseRatePercent(value)
			if err != nil {
				s.logger.WithFields(logrus.Fields{
					"setting_key": key,
					"value":       value,
				}).Warn("Ignoring invalid settlement rate, using default")
				continue
			}
			cfg.PlatformRatePercent = rate
		case models.SettingRemittanceBankName:
			cfg.Remittance.BankName = value
		case models.SettingRemittanceAccountNumber:
			cfg.Remittance.AccountNumber = value
		case models.SettingRemittanceAccountHolder:
			cfg.Remittance.AccountHolder = value
		}
	}

	return cfg, nil
}

// List returns every system setting
func (s *SettlementConfigService) List(ctx context.Context) ([]models.SystemSetting, error) {
	return s.store.GetAll(ctx)
}

// Get returns one setting by key
func (s *SettlementConfigService) Get(ctx context.Context, key string) (*models.SystemSetting, error) {
	setting, err := s.store.GetByKey(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, models.NewNotFoundError("setting", key)
	}
	return setting, err
}

// Update validates and stores a new value. Payments created earlier keep the version they
// were priced with.
func (s *SettlementConfigService) Update(ctx context.Context, key, value string) (*models.SystemSetting, error) {
	if key == models.SettingPlatformSettlementRate {
		if _, err := parseRatePercent(value); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	setting, err := s.store.Update(ctx, key, strings.TrimSpace(value))
	if errors.Is(err, database.ErrNotFound) {
		return nil, models.NewNotFoundError("setting", key)
	}
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"setting_key": key,
		"version":     setting.Version,
	}).Info("System setting updated")

	return setting, nil
}

func parseRatePercent(value string) (float64, error) {
	rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("settlement rate must be a number, got %q", value)
	}
	if rate < 0 || rate > 100 {
		return 0, fmt.Errorf("settlement rate must be between 0 and 100, got %v", rate)
	}
	return rate, nil
}
