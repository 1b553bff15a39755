package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carenest/therapy-booking/internal/database"
	"github.com/carenest/therapy-booking/internal/models"
	"github.com/carenest/therapy-booking/pkg/metrics"
)

// CreateBookingGroupCommand is a guardian's request to book a package of sessions
type CreateBookingGroupCommand struct {
	GuardianID         uuid.UUID
	ChildID            uuid.UUID
	ProviderID         uuid.UUID // optional; taken from the slots when Nil
	SessionType        models.SessionType
	SessionCount       int
	SlotIDs            []uuid.UUID
	VisitAddress       string
	VisitAddressDetail *string
	Note               *string
}

// BookingGroupService creates a Payment and its session bookings atomically
type BookingGroupService struct {
	tx         Transactor
	slots      *SlotStore
	payments   PaymentRepository
	bookings   SessionBookingRepository
	children   ChildDirectory
	providers  ProviderDirectory
	matcher    AddressMatcher
	settlement SettlementConfigSource
	metrics    *metrics.Metrics
	logger     *logrus.Logger
	location   *time.Location
	now        func() time.Time
}

// NewBookingGroupService creates a new BookingGroupService
func NewBookingGroupService(
	tx Transactor,
	slots *SlotStore,
	payments PaymentRepository,
	bookings SessionBookingRepository,
	children ChildDirectory,
	providers ProviderDirectory,
	matcher AddressMatcher,
	settlement SettlementConfigSource,
	m *metrics.Metrics,
	logger *logrus.Logger,
	location *time.Location,
) *BookingGroupService {
	return &BookingGroupService{
		tx:         tx,
		slots:      slots,
		payments:   payments,
		bookings:   bookings,
		children:   children,
		providers:  providers,
		matcher:    matcher,
		settlement: settlement,
		metrics:    m,
		logger:     logger,
		location:   location,
		now:        time.Now,
	}
}

// CreateBookingGroup validates the request, prices it and writes the Payment, its
// Bookings and the slot reservations in one transaction
func (s *BookingGroupService) CreateBookingGroup(ctx context.Context, cmd CreateBookingGroupCommand) (*models.BookingGroupResult, error) {
	result, err := s.createBookingGroup(ctx, cmd)

	switch {
	case err == nil:
		s.metrics.BookingGroup(string(cmd.SessionType), metrics.OutcomeCreated)
		s.logger.WithFields(logrus.Fields{
			"payment_id":   result.Payment.ID,
			"guardian_id":  cmd.GuardianID,
			"provider_id":  result.Payment.ProviderID,
			"session_type": cmd.SessionType,
			"sessions":     len(result.Bookings),
			"final_fee":    result.Payment.FinalFee,
		}).Info("Booking group created")
	case models.KindOf(err) != "":
		s.metrics.BookingGroup(string(cmd.SessionType), metrics.OutcomeRejected)
		s.logger.WithFields(logrus.Fields{
			"guardian_id": cmd.GuardianID,
			"error_kind":  models.KindOf(err),
		}).Info("Booking group rejected")
	default:
		s.metrics.BookingGroup(string(cmd.SessionType), metrics.OutcomeFailed)
		s.logger.WithError(err).WithField("guardian_id", cmd.GuardianID).Error("Booking group creation failed")
	}

	return result, err
}

func (s *BookingGroupService) createBookingGroup(ctx context.Context, cmd CreateBookingGroupCommand) (*models.BookingGroupResult, error) {
	// 1. Cardinality
	if err := checkCardinality(cmd); err != nil {
		return nil, err
	}

	// 2. Child ownership
	if err := s.checkChildOwnership(ctx, cmd.GuardianID, cmd.ChildID); err != nil {
		return nil, err
	}

	// 3. Same provider and reservable; re-checked under lock below
	slots, err := s.slots.Check(ctx, cmd.SlotIDs, cmd.ProviderID)
	if err != nil {
		return nil, err
	}
	providerID := slots[0].ProviderID

	// 4. Provider approval
	provider, err := s.providers.GetByID(ctx, providerID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, models.NewNotFoundError("provider", providerID)
	}
	if err != nil {
		return nil, err
	}
	if !provider.IsApproved() {
		return nil, models.NewProviderNotApprovedError(provider.ID)
	}

	// 5. Service area
	visitAddress, err := s.checkServiceArea(ctx, cmd, provider)
	if err != nil {
		return nil, err
	}

	// 6. Pricing
	settlement, err := s.settlement.Current(ctx)
	if err != nil {
		return nil, err
	}
	fee, err := Price(cmd.SessionType, cmd.SessionCount, provider.RateCard(), settlement)
	if err != nil {
		return nil, err
	}

	now := s.now()
	payment := &models.Payment{
		ID:                 uuid.New(),
		GuardianID:         cmd.GuardianID,
		ChildID:            cmd.ChildID,
		ProviderID:         providerID,
		SessionType:        cmd.SessionType,
		TotalSessions:      cmd.SessionCount,
		OriginalFee:        fee.OriginalFee,
		DiscountRate:       fee.DiscountRate,
		FinalFee:           fee.FinalFee,
		PlatformFee:        fee.PlatformFee,
		VisitAddress:       visitAddress,
		VisitAddressDetail: cmd.VisitAddressDetail,
		Note:               cmd.Note,
		SettingsVersion:    settlement.Version,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var bookings []*models.SessionBooking
	err = s.tx.WithTx(ctx, func(q database.Queryer) error {
		reserved, err := s.slots.Reserve(ctx, q, cmd.SlotIDs, providerID)
		if err != nil {
			return err
		}

		if err := s.payments.Create(ctx, q, payment); err != nil {
			return err
		}

		bookings = make([]*models.SessionBooking, 0, len(reserved))
		for i, slot := range reserved {
			scheduledAt, err := slot.ScheduledAt(s.location)
			if err != nil {
				return err
			}
			bookings = append(bookings, &models.SessionBooking{
				ID:            uuid.New(),
				PaymentID:     payment.ID,
				TimeSlotID:    slot.ID,
				SessionNumber: i + 1,
				ScheduledAt:   scheduledAt,
				Status:        models.BookingPendingConfirmation,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
		}

		return s.bookings.CreateBatch(ctx, q, bookings)
	})
	if err != nil {
		return nil, mapTxError(err)
	}

	result := &models.BookingGroupResult{
		Payment:           *payment,
		Bookings:          make([]models.SessionBooking, len(bookings)),
		RemittanceAccount: settlement.Remittance,
	}
	for i, b := range bookings {
		result.Bookings[i] = *b
	}
	result.Payment.Status = models.PaymentPendingPayment

	return result, nil
}

func checkCardinality(cmd CreateBookingGroupCommand) error {
	if !cmd.SessionType.IsValid() {
		return models.NewValidationError(fmt.Sprintf("unknown session type %q", cmd.SessionType))
	}
	if cmd.SessionCount < 1 {
		return models.NewValidationError("session count must be at least 1")
	}
	if cmd.SessionType == models.SessionTypeConsultation && (cmd.SessionCount != 1 || len(cmd.SlotIDs) != 1) {
		return models.NewValidationError("a consultation requires exactly one time slot")
	}
	if len(cmd.SlotIDs) != cmd.SessionCount {
		return models.NewValidationError(
			fmt.Sprintf("session count %d does not match %d time slots", cmd.SessionCount, len(cmd.SlotIDs)))
	}
	return validateSlotIDs(cmd.SlotIDs)
}

func (s *BookingGroupService) checkChildOwnership(ctx context.Context, guardianID, childID uuid.UUID) error {
	child, err := s.children.GetByID(ctx, childID)
	if errors.Is(err, database.ErrNotFound) {
		return models.NewNotFoundError("child", childID)
	}
	if err != nil {
		return err
	}
	if child.GuardianID != guardianID {
		return models.NewForbiddenError("child does not belong to the requesting guardian")
	}
	return nil
}

// checkServiceArea matches the guardian's registered address, and the visit address when
// one was given, against the provider's service areas. Returns the visit address to store.
func (s *BookingGroupService) checkServiceArea(ctx context.Context, cmd CreateBookingGroupCommand, provider *models.Provider) (string, error) {
	registered, err := s.children.GetServiceAddress(ctx, cmd.GuardianID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return "", err
	}
	registered = strings.TrimSpace(registered)
	if registered == "" {
		return "", models.NewValidationError("guardian has no registered service address")
	}

	if !s.matcher.Matches(registered, provider.ServiceAreas) {
		return "", models.NewAddressMismatchError(registered)
	}

	visit := strings.TrimSpace(cmd.VisitAddress)
	if visit == "" {
		return registered, nil
	}
	if visit != registered && !s.matcher.Matches(visit, provider.ServiceAreas) {
		return "", models.NewAddressMismatchError(visit)
	}
	return visit, nil
}

// mapTxError turns aborted transactions into ConcurrencyConflict; domain errors pass through
func mapTxError(err error) error {
	if errors.Is(err, database.ErrConcurrencyConflict) {
		return models.NewConcurrencyConflictError("the request conflicted with a concurrent change, please retry")
	}
	return err
}
