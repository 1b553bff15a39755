package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carenest/therapy-booking/internal/database"
	"github.com/carenest/therapy-booking/internal/models"
	"github.com/carenest/therapy-booking/pkg/metrics"
)

// BookingLifecycleService drives bookings through their status machine
type BookingLifecycleService struct {
	tx        Transactor
	payments  PaymentRepository
	bookings  SessionBookingRepository
	providers ProviderDirectory
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	now       func() time.Time
}

// NewBookingLifecycleService creates a new BookingLifecycleService
func NewBookingLifecycleService(
	tx Transactor,
	payments PaymentRepository,
	bookings SessionBookingRepository,
	providers ProviderDirectory,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *BookingLifecycleService {
	return &BookingLifecycleService{
		tx:        tx,
		payments:  payments,
		bookings:  bookings,
		providers: providers,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// ConfirmPayment records that the guardian's transfer arrived and confirms every booking
// of the payment still waiting for it
func (s *BookingLifecycleService) ConfirmPayment(ctx context.Context, paymentID, operatorID uuid.UUID) (*models.Payment, error) {
	var payment *models.Payment
	var confirmed int64

	err := s.tx.WithTx(ctx, func(q database.Queryer) error {
		p, err := s.payments.LockByID(ctx, q, paymentID)
		if err != nil {
			return notFoundAs(err, "payment", paymentID)
		}

		siblings, err := s.bookings.ListByPaymentID(ctx, q, paymentID)
		if err != nil {
			return err
		}
		status := models.DerivePaymentStatus(bookingStatuses(siblings))
		if status != models.PaymentPendingPayment || p.PaidAt != nil {
			return models.NewPaymentStateError(status, "confirm")
		}

		now := s.now()
		ok, err := s.payments.MarkPaid(ctx, q, paymentID, now)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewPaymentStateError(models.PaymentPaid, "confirm")
		}

		confirmed, err = s.bookings.UpdateStatusForPayment(ctx, q, paymentID,
			[]models.BookingStatus{models.BookingPendingConfirmation}, models.BookingConfirmed, now)
		if err != nil {
			return err
		}

		siblings, err = s.bookings.ListByPaymentID(ctx, q, paymentID)
		if err != nil {
			return err
		}
		p.PaidAt = &now
		p.Status = models.DerivePaymentStatus(bookingStatuses(siblings))
		payment = p
		return nil
	})
	if err != nil {
		return nil, mapTxError(err)
	}

	s.metrics.Transition(string(models.BookingConfirmed), int(confirmed))
	s.logger.WithFields(logrus.Fields{
		"payment_id":  paymentID,
		"operator_id": operatorID,
		"confirmed":   confirmed,
	}).Info("Payment confirmed")

	return payment, nil
}

// SubmitJournal stores the provider's session journal and moves the booking to
// PENDING_SETTLEMENT. A journal can be written once per booking.
func (s *BookingLifecycleService) SubmitJournal(ctx context.Context, bookingID, providerUserID uuid.UUID, content string) (*models.SessionBooking, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("journal content is required")
	}

	provider, err := s.providers.GetByUserID(ctx, providerUserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, models.NewForbiddenError("only the session's provider can submit a journal")
	}
	if err != nil {
		return nil, err
	}

	var booking *models.SessionBooking
	err = s.tx.WithTx(ctx, func(q database.Queryer) error {
		b, p, err := s.lockBookingWithPayment(ctx, q, bookingID)
		if err != nil {
			return err
		}
		if p.ProviderID != provider.ID {
			return models.NewForbiddenError("only the session's provider can submit a journal")
		}
		if !b.Status.CanTransitionTo(models.BookingPendingSettlement) {
			return models.NewInvalidStateTransitionError(b.Status, models.BookingPendingSettlement)
		}

		now := s.now()
		err = s.bookings.InsertJournal(ctx, q, &models.SessionJournal{
			ID:         uuid.New(),
			BookingID:  b.ID,
			ProviderID: provider.ID,
			Content:    content,
			CreatedAt:  now,
		})
		if errors.Is(err, database.ErrUniqueViolation) {
			return models.NewInvalidStateTransitionError(b.Status, models.BookingPendingSettlement).
				WithDetail("reason", "journal already submitted")
		}
		if err != nil {
			return err
		}

		booking, err = s.transition(ctx, q, b, models.BookingPendingSettlement, now)
		return err
	})
	if err != nil {
		return nil, mapTxError(err)
	}

	s.logTransition(booking, models.BookingConfirmed, providerUserID)
	return booking, nil
}

// CompleteSettlement marks the provider as paid out for a booking
func (s *BookingLifecycleService) CompleteSettlement(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.SessionBooking, error) {
	return s.operatorTransition(ctx, bookingID, operatorID, models.BookingSettlementCompleted)
}

// ApplyOperatorAction moves a booking to one of the operator-only terminal states
func (s *BookingLifecycleService) ApplyOperatorAction(ctx context.Context, bookingID, operatorID uuid.UUID, target models.BookingStatus) (*models.SessionBooking, error) {
	switch target {
	case models.BookingCancelled, models.BookingRejected, models.BookingNoShow:
	default:
		return nil, models.NewValidationError("operator status must be one of CANCELLED, REJECTED, NO_SHOW")
	}
	return s.operatorTransition(ctx, bookingID, operatorID, target)
}

func (s *BookingLifecycleService) operatorTransition(ctx context.Context, bookingID, operatorID uuid.UUID, target models.BookingStatus) (*models.SessionBooking, error) {
	var booking *models.SessionBooking
	var from models.BookingStatus

	err := s.tx.WithTx(ctx, func(q database.Queryer) error {
		b, err := s.bookings.LockByID(ctx, q, bookingID)
		if err != nil {
			return notFoundAs(err, "booking", bookingID)
		}
		if !b.Status.CanTransitionTo(target) {
			return models.NewInvalidStateTransitionError(b.Status, target)
		}
		from = b.Status

		booking, err = s.transition(ctx, q, b, target, s.now())
		return err
	})
	if err != nil {
		return nil, mapTxError(err)
	}

	s.logTransition(booking, from, operatorID)
	return booking, nil
}

// SubmitReview stores the guardian's rating of a delivered session
func (s *BookingLifecycleService) SubmitReview(ctx context.Context, bookingID, guardianID uuid.UUID, rating int, content *string) (*models.SessionReview, error) {
	if rating < 1 || rating > 5 {
		return nil, models.NewValidationError("rating must be between 1 and 5")
	}

	review := &models.SessionReview{
		ID:         uuid.New(),
		BookingID:  bookingID,
		GuardianID: guardianID,
		Rating:     rating,
		Content:    content,
	}

	err := s.tx.WithTx(ctx, func(q database.Queryer) error {
		b, p, err := s.lockBookingWithPayment(ctx, q, bookingID)
		if err != nil {
			return err
		}
		if p.GuardianID != guardianID {
			return models.NewForbiddenError("only the booking's guardian can review it")
		}
		if b.Status != models.BookingPendingSettlement && b.Status != models.BookingSettlementCompleted {
			return models.NewInvalidStateTransitionError(b.Status, b.Status).
				WithDetail("reason", "session has not been delivered yet")
		}

		review.CreatedAt = s.now()
		err = s.bookings.InsertReview(ctx, q, review)
		if errors.Is(err, database.ErrUniqueViolation) {
			return models.NewInvalidStateTransitionError(b.Status, b.Status).
				WithDetail("reason", "review already submitted")
		}
		return err
	})
	if err != nil {
		return nil, mapTxError(err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  bookingID,
		"guardian_id": guardianID,
		"rating":      rating,
	}).Info("Session review submitted")

	return review, nil
}

// ListBookings returns the caller's bookings. Guardians see their own, therapists the
// ones they deliver and admins everything. Pages cover whole booking groups.
func (s *BookingLifecycleService) ListBookings(ctx context.Context, actor models.Actor, filter models.BookingFilter) ([]models.BookingView, error) {
	if filter.Limit == 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	pf := models.PaymentFilter{
		ChildID:     filter.ChildID,
		SessionType: filter.SessionType,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}

	switch {
	case actor.HasRole(models.RoleAdmin):
		pf.GuardianID = filter.GuardianID
		pf.ProviderID = filter.ProviderID
	case actor.HasRole(models.RoleTherapist):
		provider, err := s.providers.GetByUserID(ctx, actor.UserID)
		if errors.Is(err, database.ErrNotFound) {
			return []models.BookingView{}, nil
		}
		if err != nil {
			return nil, err
		}
		pf.ProviderID = &provider.ID
	case actor.HasRole(models.RoleGuardian):
		pf.GuardianID = &actor.UserID
	default:
		return nil, models.NewForbiddenError("no role allowed to list bookings")
	}

	payments, err := s.payments.List(ctx, pf)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return []models.BookingView{}, nil
	}

	ids := make([]uuid.UUID, len(payments))
	for i := range payments {
		ids[i] = payments[i].ID
	}
	grouped, err := s.bookings.ListByPaymentIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.BookingView, 0)
	for _, p := range payments {
		siblings := grouped[p.ID]
		paymentStatus := models.DerivePaymentStatus(bookingStatuses(siblings))
		for _, b := range siblings {
			if !matchesStatusFilter(filter, b.Status, paymentStatus) {
				continue
			}
			views = append(views, models.BookingView{
				SessionBooking: b,
				PaymentStatus:  paymentStatus,
				SessionType:    p.SessionType,
				ChildID:        p.ChildID,
				ProviderID:     p.ProviderID,
				GuardianID:     p.GuardianID,
				TotalSessions:  p.TotalSessions,
			})
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].ScheduledAt.Equal(views[j].ScheduledAt) {
			return views[i].ScheduledAt.Before(views[j].ScheduledAt)
		}
		return views[i].SessionNumber < views[j].SessionNumber
	})

	return views, nil
}

// GetBooking returns a booking with its payment and siblings
func (s *BookingLifecycleService) GetBooking(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.BookingDetail, error) {
	b, err := s.bookings.GetByID(ctx, nil, bookingID)
	if err != nil {
		return nil, notFoundAs(err, "booking", bookingID)
	}
	p, err := s.payments.GetByID(ctx, nil, b.PaymentID)
	if err != nil {
		return nil, notFoundAs(err, "payment", b.PaymentID)
	}
	if err := authorizePaymentAccess(ctx, s.providers, actor, p); err != nil {
		return nil, err
	}

	siblings, err := s.bookings.ListByPaymentID(ctx, nil, p.ID)
	if err != nil {
		return nil, err
	}
	p.Status = models.DerivePaymentStatus(bookingStatuses(siblings))

	detail := &models.BookingDetail{Booking: *b, Payment: *p, Siblings: siblings}
	journal, err := s.bookings.GetJournal(ctx, b.ID)
	switch {
	case err == nil:
		detail.Journal = journal
	case !errors.Is(err, database.ErrNotFound):
		return nil, err
	}
	return detail, nil
}

func (s *BookingLifecycleService) lockBookingWithPayment(ctx context.Context, q database.Queryer, bookingID uuid.UUID) (*models.SessionBooking, *models.Payment, error) {
	b, err := s.bookings.LockByID(ctx, q, bookingID)
	if err != nil {
		return nil, nil, notFoundAs(err, "booking", bookingID)
	}
	p, err := s.payments.GetByID(ctx, q, b.PaymentID)
	if err != nil {
		return nil, nil, notFoundAs(err, "payment", b.PaymentID)
	}
	return b, p, nil
}

// transition performs the conditional update; losing a race reports the state we read
func (s *BookingLifecycleService) transition(ctx context.Context, q database.Queryer, b *models.SessionBooking, to models.BookingStatus, at time.Time) (*models.SessionBooking, error) {
	ok, err := s.bookings.UpdateStatus(ctx, q, b.ID, b.Status, to, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewInvalidStateTransitionError(b.Status, to)
	}

	updated := *b
	updated.Status = to
	updated.UpdatedAt = at
	switch to {
	case models.BookingPendingSettlement:
		updated.JournalSubmittedAt = &at
	case models.BookingSettlementCompleted:
		updated.SettledAt = &at
	case models.BookingCancelled, models.BookingRejected, models.BookingNoShow:
		updated.CancelledAt = &at
	}
	return &updated, nil
}

func (s *BookingLifecycleService) logTransition(b *models.SessionBooking, from models.BookingStatus, actorID uuid.UUID) {
	s.metrics.Transition(string(b.Status), 1)
	s.logger.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"payment_id": b.PaymentID,
		"from":       from,
		"to":         b.Status,
		"actor_id":   actorID,
	}).Info("Booking status changed")
}

// authorizePaymentAccess lets admins, the paying guardian and the delivering provider through
func authorizePaymentAccess(ctx context.Context, providers ProviderDirectory, actor models.Actor, p *models.Payment) error {
	if actor.HasRole(models.RoleAdmin) {
		return nil
	}
	if actor.HasRole(models.RoleGuardian) && p.GuardianID == actor.UserID {
		return nil
	}
	if actor.HasRole(models.RoleTherapist) {
		provider, err := providers.GetByUserID(ctx, actor.UserID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return err
		}
		if err == nil && provider.ID == p.ProviderID {
			return nil
		}
	}
	return models.NewForbiddenError("not allowed to access this booking")
}

func matchesStatusFilter(f models.BookingFilter, booking models.BookingStatus, payment models.PaymentStatus) bool {
	if !f.HasStatusFilter() {
		return true
	}
	for _, s := range f.BookingStatuses {
		if s == booking {
			return true
		}
	}
	for _, s := range f.PaymentStatuses {
		if s == payment {
			return true
		}
	}
	return false
}

func bookingStatuses(bookings []models.SessionBooking) []models.BookingStatus {
	statuses := make([]models.BookingStatus, len(bookings))
	for i := range bookings {
		statuses[i] = bookings[i].Status
	}
	return statuses
}

func notFoundAs(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, database.ErrNotFound) {
		return models.NewNotFoundError(entity, id)
	}
	return err
}
