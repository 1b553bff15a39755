package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrorKind classifies a booking failure. Handlers map kinds to HTTP statuses.
type ErrorKind string

const (
	ErrKindValidation             ErrorKind = "validation_error"
	ErrKindSlotUnavailable        ErrorKind = "slot_unavailable"
	ErrKindCrossProvider          ErrorKind = "cross_provider_conflict"
	ErrKindMissingRateCard        ErrorKind = "missing_rate_card"
	ErrKindAddressMismatch        ErrorKind = "address_mismatch"
	ErrKindInvalidStateTransition ErrorKind = "invalid_state_transition"
	ErrKindAlreadyProcessed       ErrorKind = "already_processed"
	ErrKindRefundAlreadyPending   ErrorKind = "refund_already_pending"
	ErrKindRefundNotEligible      ErrorKind = "refund_not_eligible"
	ErrKindAlreadyRefunded        ErrorKind = "already_refunded"
	ErrKindNotFound               ErrorKind = "not_found"
	ErrKindUnauthorized           ErrorKind = "unauthorized"
	ErrKindForbidden              ErrorKind = "forbidden"
	ErrKindProviderNotApproved    ErrorKind = "provider_not_approved"
	ErrKindConcurrencyConflict    ErrorKind = "concurrency_conflict"
)

// BookingError is the error type returned by the booking services
type BookingError struct {
	Kind    ErrorKind              `json:"error"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *BookingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches on kind so errors.Is(err, &BookingError{Kind: ...}) works
func (e *BookingError) Is(target error) bool {
	var t *BookingError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of a BookingError anywhere in the chain, or "" otherwise
func KindOf(err error) ErrorKind {
	var be *BookingError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

func newBookingError(kind ErrorKind, code, message string) *BookingError {
	return &BookingError{Kind: kind, Code: code, Message: message}
}

// WithDetail attaches a detail field and returns the same error
func (e *BookingError) WithDetail(key string, value interface{}) *BookingError {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// ============================================================================
// CONSTRUCTORS
// ============================================================================

func NewValidationError(message string) *BookingError {
	return newBookingError(ErrKindValidation, "VALIDATION_ERROR", message)
}

func NewSlotUnavailableError(slotID uuid.UUID, reason string) *BookingError {
	return newBookingError(ErrKindSlotUnavailable, "SLOT_UNAVAILABLE",
		fmt.Sprintf("time slot %s is not available: %s", slotID, reason)).
		WithDetail("slot_id", slotID.String()).
		WithDetail("reason", reason)
}

func NewCrossProviderError(message string) *BookingError {
	return newBookingError(ErrKindCrossProvider, "CROSS_PROVIDER_CONFLICT", message)
}

func NewMissingRateCardError(message string) *BookingError {
	return newBookingError(ErrKindMissingRateCard, "MISSING_RATE_CARD", message)
}

func NewAddressMismatchError(address string) *BookingError {
	return newBookingError(ErrKindAddressMismatch, "ADDRESS_MISMATCH",
		"visit address is outside the provider's service areas").
		WithDetail("visit_address", address)
}

func NewInvalidStateTransitionError(current, attempted BookingStatus) *BookingError {
	return newBookingError(ErrKindInvalidStateTransition, "INVALID_STATE_TRANSITION",
		fmt.Sprintf("cannot move booking from %s to %s", current, attempted)).
		WithDetail("current_status", string(current)).
		WithDetail("attempted_status", string(attempted))
}

// NewPaymentStateError reports an operation that needs a different payment status
func NewPaymentStateError(current PaymentStatus, operation string) *BookingError {
	return newBookingError(ErrKindInvalidStateTransition, "INVALID_STATE_TRANSITION",
		fmt.Sprintf("cannot %s a payment in status %s", operation, current)).
		WithDetail("current_status", string(current))
}

func NewAlreadyProcessedError(id uuid.UUID, status RefundStatus) *BookingError {
	return newBookingError(ErrKindAlreadyProcessed, "ALREADY_PROCESSED",
		fmt.Sprintf("refund request %s is already %s", id, status)).
		WithDetail("status", string(status))
}

func NewRefundAlreadyPendingError(paymentID uuid.UUID) *BookingError {
	return newBookingError(ErrKindRefundAlreadyPending, "REFUND_ALREADY_PENDING",
		"a refund request for this payment is already pending").
		WithDetail("payment_id", paymentID.String())
}

func NewRefundNotEligibleError(message string) *BookingError {
	return newBookingError(ErrKindRefundNotEligible, "REFUND_NOT_ELIGIBLE", message)
}

func NewAlreadyRefundedError(paymentID uuid.UUID) *BookingError {
	return newBookingError(ErrKindAlreadyRefunded, "ALREADY_REFUNDED",
		"payment has already been refunded").
		WithDetail("payment_id", paymentID.String())
}

func NewNotFoundError(entity string, id interface{}) *BookingError {
	return newBookingError(ErrKindNotFound, "NOT_FOUND",
		fmt.Sprintf("%s %v not found", entity, id)).
		WithDetail("entity", entity)
}

func NewUnauthorizedError(message string) *BookingError {
	return newBookingError(ErrKindUnauthorized, "UNAUTHORIZED", message)
}

func NewForbiddenError(message string) *BookingError {
	return newBookingError(ErrKindForbidden, "FORBIDDEN", message)
}

func NewProviderNotApprovedError(providerID uuid.UUID) *BookingError {
	return newBookingError(ErrKindProviderNotApproved, "PROVIDER_NOT_APPROVED",
		"provider is not approved to accept bookings").
		WithDetail("provider_id", providerID.String())
}

func NewConcurrencyConflictError(message string) *BookingError {
	return newBookingError(ErrKindConcurrencyConflict, "CONCURRENCY_CONFLICT", message)
}
