package models

import (
	"time"

	"github.com/google/uuid"
)

// Setting keys read by the settlement configuration
const (
	SettingPlatformSettlementRate  = "platform_settlement_rate"
	SettingRemittanceBankName      = "remittance_bank_name"
	SettingRemittanceAccountNumber = "remittance_account_number"
	SettingRemittanceAccountHolder = "remittance_account_holder"
)

// SystemSetting is a versioned platform configuration value
type SystemSetting struct {
	ID           uuid.UUID `json:"id" db:"id"`
	SettingKey   string    `json:"setting_key" db:"setting_key"`
	SettingValue string    `json:"setting_value" db:"setting_value"`
	Description  *string   `json:"description,omitempty" db:"description"`
	Version      int       `json:"version" db:"version"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UpdateSystemSettingRequest represents the request to update a system setting
type UpdateSystemSettingRequest struct {
	SettingValue string `json:"setting_value" binding:"required"`
}
