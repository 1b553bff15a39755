package models

// RateCard is the provider's price list
type RateCard struct {
	PerSessionRate               *int64 `json:"per_session_rate,omitempty"`
	ConsultationFee              *int64 `json:"consultation_fee,omitempty"`
	ConsultationSettlementAmount *int64 `json:"consultation_settlement_amount,omitempty"`
}

// RemittanceAccount is where guardians transfer booking payments
type RemittanceAccount struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
}

// SettlementConfig is the platform configuration snapshot used to price one booking group
type SettlementConfig struct {
	// PlatformRatePercent is the platform share of a therapy payment, e.g. 5 for 5%
	PlatformRatePercent float64           `json:"platform_rate_percent"`
	Remittance          RemittanceAccount `json:"remittance_account"`
	Version             int               `json:"version"`
}

// FeeBreakdown is the output of the fee calculator
type FeeBreakdown struct {
	OriginalFee        int64   `json:"original_fee"`
	DiscountRate       float64 `json:"discount_rate"`
	FinalFee           int64   `json:"final_fee"`
	PlatformFee        int64   `json:"platform_fee"`
	ProviderSettlement int64   `json:"provider_settlement"`
}
