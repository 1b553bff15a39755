package models

import (
	"github.com/google/uuid"
)

// ============================================================================
// BOOKING REQUESTS
// ============================================================================

// CreateBookingGroupRequest is the body of POST /bookings
type CreateBookingGroupRequest struct {
	ChildID            uuid.UUID   `json:"child_id" binding:"required"`
	ProviderID         *uuid.UUID  `json:"provider_id,omitempty"`
	SessionType        SessionType `json:"session_type" binding:"required"`
	SessionCount       int         `json:"session_count" binding:"required,min=1"`
	SlotIDs            []uuid.UUID `json:"slot_ids" binding:"required,min=1"`
	VisitAddress       string      `json:"visit_address"` // defaults to the guardian's service address
	VisitAddressDetail *string     `json:"visit_address_detail,omitempty"`
	Note               *string     `json:"note,omitempty"`
}

// SubmitJournalRequest is the body of POST /bookings/:id/journal
type SubmitJournalRequest struct {
	Content string `json:"content" binding:"required"`
}

// SubmitReviewRequest is the body of POST /bookings/:id/review
type SubmitReviewRequest struct {
	Rating  int     `json:"rating" binding:"required,min=1,max=5"`
	Content *string `json:"content,omitempty"`
}

// OperatorStatusRequest is the body of POST /admin/bookings/:id/status
type OperatorStatusRequest struct {
	Status BookingStatus `json:"status" binding:"required"`
	Reason *string       `json:"reason,omitempty"`
}

// ============================================================================
// REFUND REQUESTS
// ============================================================================

// CreateRefundRequest is the body of POST /refund-requests
type CreateRefundRequest struct {
	PaymentID       uuid.UUID `json:"payment_id" binding:"required"`
	Reason          string    `json:"reason" binding:"required"`
	RequestedAmount int64     `json:"requested_amount" binding:"required,min=1"`
}

// ApproveRefundRequest is the body of POST /refund-requests/:id/approve
type ApproveRefundRequest struct {
	ApprovedAmount int64   `json:"approved_amount" binding:"required,min=1"`
	Note           *string `json:"note,omitempty"`
}

// RejectRefundRequest is the body of POST /refund-requests/:id/reject
type RejectRefundRequest struct {
	RejectionReason string  `json:"rejection_reason" binding:"required"`
	Note            *string `json:"note,omitempty"`
}

// ============================================================================
// RESPONSES
// ============================================================================

// BookingGroupResult is returned after a booking group is created
type BookingGroupResult struct {
	Payment           Payment           `json:"payment"`
	Bookings          []SessionBooking  `json:"bookings"`
	RemittanceAccount RemittanceAccount `json:"remittance_account"`
}

// BookingView is a booking together with its payment
type BookingView struct {
	SessionBooking
	PaymentStatus PaymentStatus `json:"payment_status"`
	SessionType   SessionType   `json:"session_type"`
	ChildID       uuid.UUID     `json:"child_id"`
	ProviderID    uuid.UUID     `json:"provider_id"`
	GuardianID    uuid.UUID     `json:"guardian_id"`
	TotalSessions int           `json:"total_sessions"`
}

// BookingDetail is returned by GET /bookings/:id
type BookingDetail struct {
	Booking  SessionBooking   `json:"booking"`
	Payment  Payment          `json:"payment"`
	Siblings []SessionBooking `json:"siblings"`
	Journal  *SessionJournal  `json:"journal,omitempty"`
}

// RefundRequestDetail adds the display-only pro-rata suggestion to a refund request
type RefundRequestDetail struct {
	RefundRequest
	PaymentStatus   PaymentStatus `json:"payment_status"`
	SuggestedAmount int64         `json:"suggested_amount"`
}

// Actor identifies the authenticated caller of a service operation
type Actor struct {
	UserID uuid.UUID
	Roles  []string
}

// Role names carried in access tokens
const (
	RoleGuardian  = "guardian"
	RoleTherapist = "therapist"
	RoleAdmin     = "admin"
)

// HasRole reports whether the actor carries role
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}
