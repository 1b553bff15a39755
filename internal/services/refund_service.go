package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carenest/therapy-booking/internal/database"
	"github.com/carenest/therapy-booking/internal/models"
	"github.com/carenest/therapy-booking/pkg/metrics"
)

// Refund decisions as counted in metrics
const (
	RefundDecisionApproved = "approved"
	RefundDecisionRejected = "rejected"
)

// RefundService manages refund requests and their approval
type RefundService struct {
	tx       Transactor
	payments PaymentRepository
	bookings SessionBookingRepository
	refunds  RefundRequestRepository
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	now      func() time.Time
}

// NewRefundService creates a new RefundService
func NewRefundService(
	tx Transactor,
	payments PaymentRepository,
	bookings SessionBookingRepository,
	refunds RefundRequestRepository,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *RefundService {
	return &RefundService{
		tx:       tx,
		payments: payments,
		bookings: bookings,
		refunds:  refunds,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// RequestRefund files a refund request for a payment on behalf of its guardian
func (s *RefundService) RequestRefund(ctx context.Context, paymentID, requesterID uuid.UUID, reason string, requestedAmount int64) (*models.RefundRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("refund reason is required")
	}

	var request *models.RefundRequest
	err := s.tx.WithTx(ctx, func(q database.Queryer) error {
		// The payment row lock serialises concurrent requests for the same payment
		p, err := s.payments.LockByID(ctx, q, paymentID)
		if err != nil {
			return notFoundAs(err, "payment", paymentID)
		}
		if p.GuardianID != requesterID {
			return models.NewForbiddenError("only the paying guardian can request a refund")
		}
		if requestedAmount < 1 || requestedAmount > p.FinalFee {
			return models.NewValidationError("requested amount must be between 1 and the payment's final fee").
				WithDetail("final_fee", p.FinalFee)
		}

		siblings, err := s.bookings.ListByPaymentID(ctx, q, paymentID)
		if err != nil {
			return err
		}
		if err := checkRefundEligibility(p, siblings); err != nil {
			return err
		}

		pending, err := s.refunds.HasPending(ctx, q, paymentID)
		if err != nil {
			return err
		}
		if pending {
			return models.NewRefundAlreadyPendingError(paymentID)
		}
		if allDelivered(siblings) {
			return models.NewRefundNotEligibleError("every session of this payment has already been delivered")
		}

		now := s.now()
		request = &models.RefundRequest{
			ID:              uuid.New(),
			PaymentID:       paymentID,
			RequesterID:     requesterID,
			RequestedAmount: requestedAmount,
			Reason:          reason,
			Status:          models.RefundPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		err = s.refunds.Create(ctx, q, request)
		if errors.Is(err, database.ErrUniqueViolation) {
			return models.NewRefundAlreadyPendingError(paymentID)
		}
		return err
	})
	if err != nil {
		return nil, mapTxError(err)
	}

	s.logger.WithFields(logrus.Fields{
		"refund_request_id": request.ID,
		"payment_id":        paymentID,
		"requested_amount":  requestedAmount,
	}).Info("Refund requested")

	return request, nil
}

// Approve accepts a pending request for the operator-entered amount. Every sibling
// booking that is not yet terminal becomes REFUNDED and the payment records the amount.
func (s *RefundService) Approve(ctx context.Context, requestID, operatorID uuid.UUID, approvedAmount int64, note *string) (*models.RefundRequest, error) {
	var request *models.RefundRequest
	var refunded int64

	err := s.tx.WithTx(ctx, func(q database.Queryer) error {
		r, err := s.lockPending(ctx, q, requestID)
		if err != nil {
			return err
		}
		if approvedAmount <= 0 || approvedAmount > r.RequestedAmount {
			return models.NewValidationError("approved amount must be positive and not exceed the requested amount").
				WithDetail("requested_amount", r.RequestedAmount)
		}

		if _, err := s.payments.LockByID(ctx, q, r.PaymentID); err != nil {
			return notFoundAs(err, "payment", r.PaymentID)
		}

		now := s.now()
		ok, err := s.refunds.MarkApproved(ctx, q, r.ID, approvedAmount, note, operatorID, now)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewAlreadyProcessedError(r.ID, r.Status)
		}

		refunded, err = s.bookings.UpdateStatusForPayment(ctx, q, r.PaymentID, refundableStatuses, models.BookingRefunded, now)
		if err != nil {
			return err
		}

		ok, err = s.payments.RecordRefund(ctx, q, r.PaymentID, approvedAmount, now)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewAlreadyRefundedError(r.PaymentID)
		}

		r.Status = models.RefundApproved
		r.ApprovedAmount = &approvedAmount
		r.AdminNote = note
		r.ProcessedBy = &operatorID
		r.ProcessedAt = &now
		r.UpdatedAt = now
		request = r
		return nil
	})
	if err != nil {
		return nil, mapTxError(err)
	}

	s.metrics.RefundDecision(RefundDecisionApproved, approvedAmount)
	s.metrics.Transition(string(models.BookingRefunded), int(refunded))
	s.logger.WithFields(logrus.Fields{
		"refund_request_id": request.ID,
		"payment_id":        request.PaymentID,
		"approved_amount":   approvedAmount,
		"bookings_refunded": refunded,
		"operator_id":       operatorID,
	}).Info("Refund approved")

	return request, nil
}

// Reject declines a pending request. Bookings and the payment are untouched.
func (s *RefundService) Reject(ctx context.Context, requestID, operatorID uuid.UUID, reason string, note *string) (*models.RefundRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("rejection reason is required")
	}

	var request *models.RefundRequest
	err := s.tx.WithTx(ctx, func(q database.Queryer) error {
		r, err := s.lockPending(ctx, q, requestID)
		if err != nil {
			return err
		}

		now := s.now()
		ok, err := s.refunds.MarkRejected(ctx, q, r.ID, reason, note, operatorID, now)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewAlreadyProcessedError(r.ID, r.Status)
		}

		r.Status = models.RefundRejected
		r.RejectionReason = &reason
		r.AdminNote = note
		r.ProcessedBy = &operatorID
		r.ProcessedAt = &now
		r.UpdatedAt = now
		request = r
		return nil
	})
	if err != nil {
		return nil, mapTxError(err)
	}

	s.metrics.RefundDecision(RefundDecisionRejected, 0)
	s.logger.WithFields(logrus.Fields{
		"refund_request_id": request.ID,
		"payment_id":        request.PaymentID,
		"operator_id":       operatorID,
	}).Info("Refund rejected")

	return request, nil
}

// Get returns a request with the pro-rata amount an operator may want to approve
func (s *RefundService) Get(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*models.RefundRequestDetail, error) {
	r, err := s.refunds.GetByID(ctx, nil, requestID)
	if err != nil {
		return nil, notFoundAs(err, "refund request", requestID)
	}
	p, err := s.payments.GetByID(ctx, nil, r.PaymentID)
	if err != nil {
		return nil, notFoundAs(err, "payment", r.PaymentID)
	}
	if !actor.HasRole(models.RoleAdmin) && !(actor.HasRole(models.RoleGuardian) && p.GuardianID == actor.UserID) {
		return nil, models.NewForbiddenError("not allowed to view this refund request")
	}

	siblings, err := s.bookings.ListByPaymentID(ctx, nil, p.ID)
	if err != nil {
		return nil, err
	}

	return &models.RefundRequestDetail{
		RefundRequest:   *r,
		PaymentStatus:   models.DerivePaymentStatus(bookingStatuses(siblings)),
		SuggestedAmount: SuggestRefundAmount(p, siblings),
	}, nil
}

// List returns the operator refund queue, oldest first
func (s *RefundService) List(ctx context.Context, filter models.RefundFilter) ([]models.RefundRequest, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, models.NewValidationError("unknown refund status " + string(*filter.Status))
	}
	if filter.Limit == 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.refunds.List(ctx, filter)
}

// SuggestRefundAmount is the undelivered share of the final fee. It is only shown to the
// operator; the approved amount is always entered by hand.
func SuggestRefundAmount(p *models.Payment, siblings []models.SessionBooking) int64 {
	if p.TotalSessions <= 0 {
		return 0
	}
	undelivered := 0
	for _, b := range siblings {
		if !b.Status.IsDelivered() && b.Status != models.BookingRefunded {
			undelivered++
		}
	}
	return mulDivRound(p.FinalFee, int64(undelivered), int64(p.TotalSessions))
}

// refundableStatuses are the sibling statuses an approval moves to REFUNDED
var refundableStatuses = []models.BookingStatus{
	models.BookingPendingConfirmation,
	models.BookingConfirmed,
	models.BookingPendingSettlement,
}

func (s *RefundService) lockPending(ctx context.Context, q database.Queryer, requestID uuid.UUID) (*models.RefundRequest, error) {
	r, err := s.refunds.LockByID(ctx, q, requestID)
	if err != nil {
		return nil, notFoundAs(err, "refund request", requestID)
	}
	if r.Status != models.RefundPending {
		return nil, models.NewAlreadyProcessedError(r.ID, r.Status)
	}
	return r, nil
}

func checkRefundEligibility(p *models.Payment, siblings []models.SessionBooking) error {
	status := models.DerivePaymentStatus(bookingStatuses(siblings))
	if p.RefundedAt != nil || status == models.PaymentRefunded || status == models.PaymentPartiallyRefunded {
		return models.NewAlreadyRefundedError(p.ID)
	}
	return nil
}

// allDelivered reports whether every sibling reached PENDING_SETTLEMENT or later
func allDelivered(siblings []models.SessionBooking) bool {
	for _, b := range siblings {
		if !b.Status.IsDelivered() {
			return false
		}
	}
	return true
}
