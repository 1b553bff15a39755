package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// BOOKING STATUS
// ============================================================================

// BookingStatus is the lifecycle status of a single session booking
type BookingStatus string

const (
	BookingPendingConfirmation BookingStatus = "PENDING_CONFIRMATION"
	BookingConfirmed           BookingStatus = "CONFIRMED"
	BookingPendingSettlement   BookingStatus = "PENDING_SETTLEMENT"
	BookingSettlementCompleted BookingStatus = "SETTLEMENT_COMPLETED"
	BookingCancelled           BookingStatus = "CANCELLED"
	BookingRejected            BookingStatus = "REJECTED"
	BookingNoShow              BookingStatus = "NO_SHOW"
	BookingRefunded            BookingStatus = "REFUNDED"
)

// AllBookingStatuses lists every booking status in lifecycle order
var AllBookingStatuses = []BookingStatus{
	BookingPendingConfirmation,
	BookingConfirmed,
	BookingPendingSettlement,
	BookingSettlementCompleted,
	BookingCancelled,
	BookingRejected,
	BookingNoShow,
	BookingRefunded,
}

// sideBranches are reachable from every non-terminal status
var sideBranches = []BookingStatus{BookingCancelled, BookingRejected, BookingNoShow, BookingRefunded}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPendingConfirmation: append([]BookingStatus{BookingConfirmed}, sideBranches...),
	BookingConfirmed:           append([]BookingStatus{BookingPendingSettlement}, sideBranches...),
	BookingPendingSettlement:   append([]BookingStatus{BookingSettlementCompleted}, sideBranches...),
	BookingSettlementCompleted: {},
	BookingCancelled:           {},
	BookingRejected:            {},
	BookingNoShow:              {},
	BookingRefunded:            {},
}

// IsValid reports whether s is a known booking status
func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s
func (s BookingStatus) IsTerminal() bool {
	next, ok := bookingTransitions[s]
	return ok && len(next) == 0
}

// IsSideTerminal reports whether s ended the booking outside the main line
func (s BookingStatus) IsSideTerminal() bool {
	return s == BookingCancelled || s == BookingRejected || s == BookingNoShow
}

// CanTransitionTo checks the transition table
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsDelivered reports whether the session has taken place
func (s BookingStatus) IsDelivered() bool {
	return s == BookingPendingSettlement || s == BookingSettlementCompleted || s == BookingNoShow
}

// progressRank orders the main line; -1 for statuses off it
func (s BookingStatus) progressRank() int {
	switch s {
	case BookingPendingConfirmation:
		return 0
	case BookingConfirmed:
		return 1
	case BookingPendingSettlement:
		return 2
	case BookingSettlementCompleted:
		return 3
	}
	return -1
}

// ============================================================================
// ENTITIES
// ============================================================================

// SessionBooking is one scheduled session of a payment
type SessionBooking struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	PaymentID          uuid.UUID     `json:"payment_id" db:"payment_id"`
	TimeSlotID         uuid.UUID     `json:"time_slot_id" db:"time_slot_id"`
	SessionNumber      int           `json:"session_number" db:"session_number"`
	ScheduledAt        time.Time     `json:"scheduled_at" db:"scheduled_at"`
	Status             BookingStatus `json:"status" db:"status"`
	JournalSubmittedAt *time.Time    `json:"journal_submitted_at,omitempty" db:"journal_submitted_at"`
	SettledAt          *time.Time    `json:"settled_at,omitempty" db:"settled_at"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// SessionJournal is the provider's record of a delivered session. Never updated.
type SessionJournal struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BookingID  uuid.UUID `json:"booking_id" db:"booking_id"`
	ProviderID uuid.UUID `json:"provider_id" db:"provider_id"`
	Content    string    `json:"content" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// SessionReview is the guardian's rating of a delivered session
type SessionReview struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BookingID  uuid.UUID `json:"booking_id" db:"booking_id"`
	GuardianID uuid.UUID `json:"guardian_id" db:"guardian_id"`
	Rating     int       `json:"rating" db:"rating"`
	Content    *string   `json:"content,omitempty" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// BookingFilter narrows GET /bookings
type BookingFilter struct {
	GuardianID      *uuid.UUID
	ProviderID      *uuid.UUID
	ChildID         *uuid.UUID
	SessionType     *SessionType
	BookingStatuses []BookingStatus
	PaymentStatuses []PaymentStatus
	// Limit and Offset page over booking groups, newest first
	Limit  uint64
	Offset uint64
}

// HasStatusFilter reports whether any status was requested
func (f BookingFilter) HasStatusFilter() bool {
	return len(f.BookingStatuses) > 0 || len(f.PaymentStatuses) > 0
}
