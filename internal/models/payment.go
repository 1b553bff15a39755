package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionType distinguishes the two priced products
type SessionType string

const (
	SessionTypeConsultation SessionType = "consultation"
	SessionTypeTherapy      SessionType = "therapy"
)

// IsValid reports whether t is a known session type
func (t SessionType) IsValid() bool {
	return t == SessionTypeConsultation || t == SessionTypeTherapy
}

// PaymentStatus is derived from the statuses of a payment's bookings and never stored
type PaymentStatus string

const (
	PaymentPendingPayment    PaymentStatus = "PENDING_PAYMENT"
	PaymentPaid              PaymentStatus = "PAID"
	PaymentInProgress        PaymentStatus = "IN_PROGRESS"
	PaymentCompleted         PaymentStatus = "COMPLETED"
	PaymentCancelled         PaymentStatus = "CANCELLED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
)

var paymentStatuses = map[PaymentStatus]bool{
	PaymentPendingPayment:    true,
	PaymentPaid:              true,
	PaymentInProgress:        true,
	PaymentCompleted:         true,
	PaymentCancelled:         true,
	PaymentPartiallyRefunded: true,
	PaymentRefunded:          true,
}

// IsValid reports whether s is a known payment status
func (s PaymentStatus) IsValid() bool {
	return paymentStatuses[s]
}

var progressToPayment = []PaymentStatus{
	PaymentPendingPayment,
	PaymentPaid,
	PaymentInProgress,
	PaymentCompleted,
}

// DerivePaymentStatus projects the statuses of sibling bookings onto a payment status.
// All refunded gives REFUNDED and some refunded gives PARTIALLY_REFUNDED. Otherwise the
// least advanced main-line booking decides. Cancelled, rejected and no-show siblings are
// ignored unless every sibling ended that way, which gives CANCELLED.
func DerivePaymentStatus(siblings []BookingStatus) PaymentStatus {
	if len(siblings) == 0 {
		return PaymentPendingPayment
	}

	refunded := 0
	minRank := -1
	for _, s := range siblings {
		if s == BookingRefunded {
			refunded++
			continue
		}
		rank := s.progressRank()
		if rank < 0 {
			continue
		}
		if minRank < 0 || rank < minRank {
			minRank = rank
		}
	}

	switch {
	case refunded == len(siblings):
		return PaymentRefunded
	case refunded > 0:
		return PaymentPartiallyRefunded
	case minRank < 0:
		return PaymentCancelled
	}
	return progressToPayment[minRank]
}

// Payment is the financial record covering one group of session bookings
type Payment struct {
	ID                 uuid.UUID   `json:"id" db:"id"`
	GuardianID         uuid.UUID   `json:"guardian_id" db:"guardian_id"`
	ChildID            uuid.UUID   `json:"child_id" db:"child_id"`
	ProviderID         uuid.UUID   `json:"provider_id" db:"provider_id"`
	SessionType        SessionType `json:"session_type" db:"session_type"`
	TotalSessions      int         `json:"total_sessions" db:"total_sessions"`
	OriginalFee        int64       `json:"original_fee" db:"original_fee"`
	DiscountRate       float64     `json:"discount_rate" db:"discount_rate"`
	FinalFee           int64       `json:"final_fee" db:"final_fee"`
	PlatformFee        int64       `json:"platform_fee" db:"platform_fee"`
	RefundAmount       *int64      `json:"refund_amount,omitempty" db:"refund_amount"`
	VisitAddress       string      `json:"visit_address" db:"visit_address"`
	VisitAddressDetail *string     `json:"visit_address_detail,omitempty" db:"visit_address_detail"`
	Note               *string     `json:"note,omitempty" db:"note"`
	SettingsVersion    int         `json:"settings_version" db:"settings_version"`
	PaidAt             *time.Time  `json:"paid_at,omitempty" db:"paid_at"`
	RefundedAt         *time.Time  `json:"refunded_at,omitempty" db:"refunded_at"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`

	// Status is filled from the sibling bookings after loading
	Status PaymentStatus `json:"status" db:"-"`
}

// ProviderSettlement is what the provider receives
func (p *Payment) ProviderSettlement() int64 {
	return p.FinalFee - p.PlatformFee
}

// PaymentFilter narrows payment listings
type PaymentFilter struct {
	GuardianID  *uuid.UUID
	ProviderID  *uuid.UUID
	ChildID     *uuid.UUID
	SessionType *SessionType
	Limit       uint64
	Offset      uint64
}
