package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ProviderStatus is the approval state managed by provider onboarding
type ProviderStatus string

const (
	ProviderPending   ProviderStatus = "pending"
	ProviderApproved  ProviderStatus = "approved"
	ProviderSuspended ProviderStatus = "suspended"
)

// Provider is the read-only view of a therapist this service needs
type Provider struct {
	ID                           uuid.UUID      `json:"id" db:"id"`
	UserID                       uuid.UUID      `json:"user_id" db:"user_id"`
	DisplayName                  string         `json:"display_name" db:"display_name"`
	Status                       ProviderStatus `json:"status" db:"status"`
	PerSessionRate               *int64         `json:"per_session_rate,omitempty" db:"per_session_rate"`
	ConsultationFee              *int64         `json:"consultation_fee,omitempty" db:"consultation_fee"`
	ConsultationSettlementAmount *int64         `json:"consultation_settlement_amount,omitempty" db:"consultation_settlement_amount"`
	ServiceAreas                 pq.StringArray `json:"service_areas" db:"service_areas"`
	CreatedAt                    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt                    time.Time      `json:"updated_at" db:"updated_at"`
}

// IsApproved reports whether the provider may take bookings
func (p *Provider) IsApproved() bool {
	return p.Status == ProviderApproved
}

// RateCard extracts the provider's prices
func (p *Provider) RateCard() RateCard {
	return RateCard{
		PerSessionRate:               p.PerSessionRate,
		ConsultationFee:              p.ConsultationFee,
		ConsultationSettlementAmount: p.ConsultationSettlementAmount,
	}
}

// Child is a guardian's dependent receiving sessions
type Child struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	GuardianID uuid.UUID  `json:"guardian_id" db:"guardian_id"`
	Name       string     `json:"name" db:"name"`
	BirthDate  *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
