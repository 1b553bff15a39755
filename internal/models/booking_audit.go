package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit actions
const (
	AuditBookingGroupCreated = "booking_group_created"
	AuditPaymentConfirmed    = "payment_confirmed"
	AuditJournalSubmitted    = "journal_submitted"
	AuditSettlementCompleted = "settlement_completed"
	AuditOperatorStatus      = "operator_status_change"
	AuditReviewSubmitted     = "review_submitted"
	AuditRefundRequested     = "refund_requested"
	AuditRefundApproved      = "refund_approved"
	AuditRefundRejected      = "refund_rejected"
	AuditSettingUpdated      = "setting_updated"
)

// BookingAuditLog is one append-only row in booking_audit_logs
type BookingAuditLog struct {
	ID         int64           `json:"id" db:"id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   *uuid.UUID      `json:"entity_id,omitempty" db:"entity_id"`
	FromStatus *string         `json:"from_status,omitempty" db:"from_status"`
	ToStatus   *string         `json:"to_status,omitempty" db:"to_status"`
	IPAddress  *string         `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string         `json:"user_agent,omitempty" db:"user_agent"`
	Details    json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
