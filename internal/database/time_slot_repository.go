package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/carenest/therapy-booking/internal/models"
)

// TimeSlotRepository handles database operations for time_slots
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository creates a new TimeSlotRepository
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// start_time and end_time are rendered as text; lib/pq decodes TIME into a zero-date time.Time
const timeSlotColumns = `
	id, provider_id, slot_date,
	to_char(start_time, 'HH24:MI') AS start_time,
	to_char(end_time, 'HH24:MI') AS end_time,
	is_available, is_holiday, is_buffer_blocked, current_reservation_count,
	created_at, updated_at`

// GetByIDs returns the slots with the given ids ordered by id. Missing ids are simply absent.
func (r *TimeSlotRepository) GetByIDs(ctx context.Context, q Queryer, ids []uuid.UUID) ([]models.TimeSlot, error) {
	query := `SELECT` + timeSlotColumns + `
		FROM time_slots
		WHERE id = ANY($1::uuid[])
		ORDER BY id`

	slots := []models.TimeSlot{}
	if err := sqlx.SelectContext(ctx, use(q, r.db), &slots, query, uuidArray(ids)); err != nil {
		return nil, fmt.Errorf("failed to get time slots: %w", err)
	}
	return slots, nil
}

// LockByIDs reads the slots with FOR UPDATE. Rows are locked in id order so two
// transactions reserving overlapping sets cannot deadlock on each other.
func (r *TimeSlotRepository) LockByIDs(ctx context.Context, q Queryer, ids []uuid.UUID) ([]models.TimeSlot, error) {
	query := `SELECT` + timeSlotColumns + `
		FROM time_slots
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE`

	slots := []models.TimeSlot{}
	if err := sqlx.SelectContext(ctx, q, &slots, query, uuidArray(ids)); err != nil {
		return nil, fmt.Errorf("failed to lock time slots: %w", err)
	}
	return slots, nil
}

// IncrementReservation takes the slot if it is still reservable. It reports false when
// the guard rejected the update, which means another booking got there first or the
// slot was closed since it was read.
func (r *TimeSlotRepository) IncrementReservation(ctx context.Context, q Queryer, id uuid.UUID) (bool, error) {
	query := `
		UPDATE time_slots
		SET current_reservation_count = current_reservation_count + 1,
			updated_at = NOW()
		WHERE id = $1
			AND current_reservation_count = 0
			AND is_available
			AND NOT is_holiday
			AND NOT is_buffer_blocked`

	res, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to reserve time slot %s: %w", id, err)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListAvailable returns a provider's reservable slots between from and to (inclusive dates)
func (r *TimeSlotRepository) ListAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]models.TimeSlot, error) {
	builder := psql.Select(timeSlotColumns).
		From("time_slots").
		Where(squirrel.Eq{"provider_id": providerID}).
		Where("current_reservation_count = 0").
		Where("is_available AND NOT is_holiday AND NOT is_buffer_blocked").
		OrderBy("slot_date", "start_time")

	if !from.IsZero() {
		builder = builder.Where(squirrel.GtOrEq{"slot_date": from.Format("2006-01-02")})
	}
	if !to.IsZero() {
		builder = builder.Where(squirrel.LtOrEq{"slot_date": to.Format("2006-01-02")})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build slot query: %w", err)
	}

	slots := []models.TimeSlot{}
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list available slots: %w", err)
	}
	return slots, nil
}

func uuidArray(ids []uuid.UUID) interface{} {
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	return pq.Array(values)
}
