package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carenest/therapy-booking/internal/database"
	"github.com/carenest/therapy-booking/internal/models"
)

// Transactor runs fn inside one database transaction
type Transactor interface {
	WithTx(ctx context.Context, fn func(q database.Queryer) error) error
}

// SlotRepository is the storage behind the slot store
type SlotRepository interface {
	GetByIDs(ctx context.Context, q database.Queryer, ids []uuid.UUID) ([]models.TimeSlot, error)
	LockByIDs(ctx context.Context, q database.Queryer, ids []uuid.UUID) ([]models.TimeSlot, error)
	IncrementReservation(ctx context.Context, q database.Queryer, id uuid.UUID) (bool, error)
	ListAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]models.TimeSlot, error)
}

// PaymentRepository stores payments
type PaymentRepository interface {
	Create(ctx context.Context, q database.Queryer, p *models.Payment) error
	GetByID(ctx context.Context, q database.Queryer, id uuid.UUID) (*models.Payment, error)
	LockByID(ctx context.Context, q database.Queryer, id uuid.UUID) (*models.Payment, error)
	MarkPaid(ctx context.Context, q database.Queryer, id uuid.UUID, at time.Time) (bool, error)
	RecordRefund(ctx context.Context, q database.Queryer, id uuid.UUID, amount int64, at time.Time) (bool, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
}

// SessionBookingRepository stores bookings with their journals and reviews
type SessionBookingRepository interface {
	CreateBatch(ctx context.Context, q database.Queryer, bookings []*models.SessionBooking) error
	GetByID(ctx context.Context, q database.Queryer, id uuid.UUID) (*models.SessionBooking, error)
	LockByID(ctx context.Context, q database.Queryer, id uuid.UUID) (*models.SessionBooking, error)
	ListByPaymentID(ctx context.Context, q database.Queryer, paymentID uuid.UUID) ([]models.SessionBooking, error)
	ListByPaymentIDs(ctx context.Context, paymentIDs []uuid.UUID) (map[uuid.UUID][]models.SessionBooking, error)
	UpdateStatus(ctx context.Context, q database.Queryer, id uuid.UUID, from, to models.BookingStatus, at time.Time) (bool, error)
	UpdateStatusForPayment(ctx context.Context, q database.Queryer, paymentID uuid.UUID, from []models.BookingStatus, to models.BookingStatus, at time.Time) (int64, error)
	InsertJournal(ctx context.Context, q database.Queryer, j *models.SessionJournal) error
	GetJournal(ctx context.Context, bookingID uuid.UUID) (*models.SessionJournal, error)
	InsertReview(ctx context.Context, q database.Queryer, r *models.SessionReview) error
}

// RefundRequestRepository stores refund requests
type RefundRequestRepository interface {
	Create(ctx context.Context, q database.Queryer, r *models.RefundRequest) error
	GetByID(ctx context.Context, q database.Queryer, id uuid.UUID) (*models.RefundRequest, error)
	LockByID(ctx context.Context, q database.Queryer, id uuid.UUID) (*models.RefundRequest, error)
	HasPending(ctx context.Context, q database.Queryer, paymentID uuid.UUID) (bool, error)
	MarkApproved(ctx context.Context, q database.Queryer, id uuid.UUID, amount int64, note *string, operatorID uuid.UUID, at time.Time) (bool, error)
	MarkRejected(ctx context.Context, q database.Queryer, id uuid.UUID, reason string, note *string, operatorID uuid.UUID, at time.Time) (bool, error)
	List(ctx context.Context, filter models.RefundFilter) ([]models.RefundRequest, error)
}

// ProviderDirectory answers questions about providers
type ProviderDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Provider, error)
}

// ChildDirectory answers questions about children and their guardians
type ChildDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Child, error)
	GetServiceAddress(ctx context.Context, guardianID uuid.UUID) (string, error)
}

// AddressMatcher decides whether a visit address lies inside any of a provider's areas
type AddressMatcher interface {
	Matches(address string, serviceAreas []string) bool
}

// SettlementConfigSource returns the current settlement configuration snapshot
type SettlementConfigSource interface {
	Current(ctx context.Context) (models.SettlementConfig, error)
}
