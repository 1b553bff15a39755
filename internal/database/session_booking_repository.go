package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carenest/therapy-booking/internal/models"
)

// SessionBookingRepository handles session_bookings and the rows that hang off them
type SessionBookingRepository struct {
	db *sqlx.DB
}

// NewSessionBookingRepository creates a new SessionBookingRepository
func NewSessionBookingRepository(db *sqlx.DB) *SessionBookingRepository {
	return &SessionBookingRepository{db: db}
}

const sessionBookingColumns = `
	id, payment_id, time_slot_id, session_number, scheduled_at, status,
	journal_submitted_at, settled_at, cancelled_at, created_at, updated_at`

// ============================================================================
// BOOKINGS
// ============================================================================

// CreateBatch inserts all bookings of a group in one statement
func (r *SessionBookingRepository) CreateBatch(ctx context.Context, q Queryer, bookings []*models.SessionBooking) error {
	if len(bookings) == 0 {
		return nil
	}

	builder := psql.Insert("session_bookings").Columns(
		"id", "payment_id", "time_slot_id", "session_number", "scheduled_at",
		"status", "created_at", "updated_at",
	)
	for _, b := range bookings {
		builder = builder.Values(b.ID, b.PaymentID, b.TimeSlotID, b.SessionNumber, b.ScheduledAt,
			b.Status, b.CreatedAt, b.UpdatedAt)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build booking insert: %w", err)
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create session bookings: %w", err)
	}
	return nil
}

// GetByID returns ErrNotFound when the booking does not exist
func (r *SessionBookingRepository) GetByID(ctx context.Context, q Queryer, id uuid.UUID) (*models.SessionBooking, error) {
	return r.get(ctx, use(q, r.db), `SELECT`+sessionBookingColumns+` FROM session_bookings WHERE id = $1`, id)
}

// LockByID reads the booking with FOR UPDATE inside q's transaction
func (r *SessionBookingRepository) LockByID(ctx context.Context, q Queryer, id uuid.UUID) (*models.SessionBooking, error) {
	return r.get(ctx, q, `SELECT`+sessionBookingColumns+` FROM session_bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *SessionBookingRepository) get(ctx context.Context, q Queryer, query string, id uuid.UUID) (*models.SessionBooking, error) {
	var b models.SessionBooking
	if err := sqlx.GetContext(ctx, q, &b, query, id); err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get session booking: %w", err)
	}
	return &b, nil
}

// ListByPaymentID returns the sibling bookings of a payment ordered by session number
func (r *SessionBookingRepository) ListByPaymentID(ctx context.Context, q Queryer, paymentID uuid.UUID) ([]models.SessionBooking, error) {
	query := `SELECT` + sessionBookingColumns + `
		FROM session_bookings
		WHERE payment_id = $1
		ORDER BY session_number`

	bookings := []models.SessionBooking{}
	if err := sqlx.SelectContext(ctx, use(q, r.db), &bookings, query, paymentID); err != nil {
		return nil, fmt.Errorf("failed to list session bookings: %w", err)
	}
	return bookings, nil
}

// ListByPaymentIDs groups the bookings of several payments by payment id
func (r *SessionBookingRepository) ListByPaymentIDs(ctx context.Context, paymentIDs []uuid.UUID) (map[uuid.UUID][]models.SessionBooking, error) {
	grouped := make(map[uuid.UUID][]models.SessionBooking, len(paymentIDs))
	if len(paymentIDs) == 0 {
		return grouped, nil
	}

	query, args, err := psql.Select(sessionBookingColumns).
		From("session_bookings").
		Where(squirrel.Eq{"payment_id": paymentIDs}).
		OrderBy("payment_id", "session_number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build booking query: %w", err)
	}

	bookings := []models.SessionBooking{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list session bookings: %w", err)
	}

	for _, b := range bookings {
		grouped[b.PaymentID] = append(grouped[b.PaymentID], b)
	}
	return grouped, nil
}

// UpdateStatus moves one booking from `from` to `to`. It reports false when the booking
// was no longer in `from`, so a concurrent change is never overwritten.
func (r *SessionBookingRepository) UpdateStatus(ctx context.Context, q Queryer, id uuid.UUID, from, to models.BookingStatus, at time.Time) (bool, error) {
	query, args, err := statusUpdate(to, at).
		Where(squirrel.Eq{"id": id, "status": from}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build status update: %w", err)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

// UpdateStatusForPayment moves every sibling currently in one of `from` to `to`
func (r *SessionBookingRepository) UpdateStatusForPayment(ctx context.Context, q Queryer, paymentID uuid.UUID, from []models.BookingStatus, to models.BookingStatus, at time.Time) (int64, error) {
	if len(from) == 0 {
		return 0, nil
	}

	query, args, err := statusUpdate(to, at).
		Where(squirrel.Eq{"payment_id": paymentID, "status": from}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build status update: %w", err)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update booking statuses: %w", err)
	}
	return rowsAffected(res)
}

func statusUpdate(to models.BookingStatus, at time.Time) squirrel.UpdateBuilder {
	builder := psql.Update("session_bookings").
		Set("status", to).
		Set("updated_at", at)

	switch to {
	case models.BookingPendingSettlement:
		builder = builder.Set("journal_submitted_at", at)
	case models.BookingSettlementCompleted:
		builder = builder.Set("settled_at", at)
	case models.BookingCancelled, models.BookingRejected, models.BookingNoShow, models.BookingRefunded:
		builder = builder.Set("cancelled_at", at)
	}
	return builder
}

// ============================================================================
// JOURNALS & REVIEWS
// ============================================================================

// InsertJournal appends the session journal. A second journal for the same booking
// fails with ErrUniqueViolation.
func (r *SessionBookingRepository) InsertJournal(ctx context.Context, q Queryer, j *models.SessionJournal) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO session_journals (id, booking_id, provider_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		j.ID, j.BookingID, j.ProviderID, j.Content, j.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			return fmt.Errorf("%w: %s", ErrUniqueViolation, constraint)
		}
		return fmt.Errorf("failed to insert session journal: %w", err)
	}
	return nil
}

// GetJournal returns ErrNotFound when no journal was written yet
func (r *SessionBookingRepository) GetJournal(ctx context.Context, bookingID uuid.UUID) (*models.SessionJournal, error) {
	var j models.SessionJournal
	err := r.db.GetContext(ctx, &j, `
		SELECT id, booking_id, provider_id, content, created_at
		FROM session_journals WHERE booking_id = $1`, bookingID)
	if err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get session journal: %w", err)
	}
	return &j, nil
}

// InsertReview stores the guardian's review; one per booking
func (r *SessionBookingRepository) InsertReview(ctx context.Context, q Queryer, rv *models.SessionReview) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO session_reviews (id, booking_id, guardian_id, rating, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rv.ID, rv.BookingID, rv.GuardianID, rv.Rating, rv.Content, rv.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			return fmt.Errorf("%w: %s", ErrUniqueViolation, constraint)
		}
		return fmt.Errorf("failed to insert session review: %w", err)
	}
	return nil
}
