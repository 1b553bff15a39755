package models

import (
	"time"

	"github.com/google/uuid"
)

// RefundStatus is the status of a refund request
type RefundStatus string

const (
	RefundPending  RefundStatus = "PENDING"
	RefundApproved RefundStatus = "APPROVED"
	RefundRejected RefundStatus = "REJECTED"
)

// IsValid reports whether s is a known refund status
func (s RefundStatus) IsValid() bool {
	return s == RefundPending || s == RefundApproved || s == RefundRejected
}

// RefundRequest is a guardian's claim against a payment
type RefundRequest struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	PaymentID       uuid.UUID    `json:"payment_id" db:"payment_id"`
	RequesterID     uuid.UUID    `json:"requester_id" db:"requester_id"`
	RequestedAmount int64        `json:"requested_amount" db:"requested_amount"`
	Reason          string       `json:"reason" db:"reason"`
	Status          RefundStatus `json:"status" db:"status"`
	ApprovedAmount  *int64       `json:"approved_amount,omitempty" db:"approved_amount"`
	RejectionReason *string      `json:"rejection_reason,omitempty" db:"rejection_reason"`
	AdminNote       *string      `json:"admin_note,omitempty" db:"admin_note"`
	ProcessedBy     *uuid.UUID   `json:"processed_by,omitempty" db:"processed_by"`
	ProcessedAt     *time.Time   `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// RefundFilter narrows the operator refund queue
type RefundFilter struct {
	Status    *RefundStatus
	PaymentID *uuid.UUID
	Limit     uint64
	Offset    uint64
}
