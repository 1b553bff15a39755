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

// PendingRefundConstraint is the partial unique index allowing one PENDING request per payment
const PendingRefundConstraint = "uq_refund_requests_pending"

// RefundRequestRepository handles database operations for refund_requests
type RefundRequestRepository struct {
	db *sqlx.DB
}

// NewRefundRequestRepository creates a new RefundRequestRepository
func NewRefundRequestRepository(db *sqlx.DB) *RefundRequestRepository {
	return &RefundRequestRepository{db: db}
}

const refundRequestColumns = `
	id, payment_id, requester_id, requested_amount, reason, status,
	approved_amount, rejection_reason, admin_note, processed_by, processed_at,
	created_at, updated_at`

// Create inserts a PENDING request. A second pending request for the same payment
// fails with ErrUniqueViolation.
func (r *RefundRequestRepository) Create(ctx context.Context, q Queryer, rr *models.RefundRequest) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO refund_requests (
			id, payment_id, requester_id, requested_amount, reason, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rr.ID, rr.PaymentID, rr.RequesterID, rr.RequestedAmount, rr.Reason, rr.Status,
		rr.CreatedAt, rr.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			return fmt.Errorf("%w: %s", ErrUniqueViolation, constraint)
		}
		return fmt.Errorf("failed to create refund request: %w", err)
	}
	return nil
}

// GetByID returns ErrNotFound when the request does not exist
func (r *RefundRequestRepository) GetByID(ctx context.Context, q Queryer, id uuid.UUID) (*models.RefundRequest, error) {
	return r.get(ctx, use(q, r.db), `SELECT`+refundRequestColumns+` FROM refund_requests WHERE id = $1`, id)
}

// LockByID reads the request with FOR UPDATE inside q's transaction
func (r *RefundRequestRepository) LockByID(ctx context.Context, q Queryer, id uuid.UUID) (*models.RefundRequest, error) {
	return r.get(ctx, q, `SELECT`+refundRequestColumns+` FROM refund_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *RefundRequestRepository) get(ctx context.Context, q Queryer, query string, id uuid.UUID) (*models.RefundRequest, error) {
	var rr models.RefundRequest
	if err := sqlx.GetContext(ctx, q, &rr, query, id); err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get refund request: %w", err)
	}
	return &rr, nil
}

// HasPending reports whether the payment has a PENDING request
func (r *RefundRequestRepository) HasPending(ctx context.Context, q Queryer, paymentID uuid.UUID) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, use(q, r.db), &exists, `
		SELECT EXISTS (
			SELECT 1 FROM refund_requests WHERE payment_id = $1 AND status = 'PENDING'
		)`, paymentID)
	if err != nil {
		return false, fmt.Errorf("failed to check pending refund: %w", err)
	}
	return exists, nil
}

// MarkApproved closes a PENDING request as approved. Reports false if it was not pending.
func (r *RefundRequestRepository) MarkApproved(ctx context.Context, q Queryer, id uuid.UUID, amount int64, note *string, operatorID uuid.UUID, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE refund_requests
		SET status = 'APPROVED', approved_amount = $1, admin_note = $2,
			processed_by = $3, processed_at = $4, updated_at = $4
		WHERE id = $5 AND status = 'PENDING'`,
		amount, note, operatorID, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to approve refund request: %w", err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

// MarkRejected closes a PENDING request as rejected. Reports false if it was not pending.
func (r *RefundRequestRepository) MarkRejected(ctx context.Context, q Queryer, id uuid.UUID, reason string, note *string, operatorID uuid.UUID, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE refund_requests
		SET status = 'REJECTED', rejection_reason = $1, admin_note = $2,
			processed_by = $3, processed_at = $4, updated_at = $4
		WHERE id = $5 AND status = 'PENDING'`,
		reason, note, operatorID, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to reject refund request: %w", err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

// List returns requests for the operator queue, oldest first
func (r *RefundRequestRepository) List(ctx context.Context, filter models.RefundFilter) ([]models.RefundRequest, error) {
	builder := psql.Select(refundRequestColumns).From("refund_requests").OrderBy("created_at ASC")

	if filter.Status != nil {
		builder = builder.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.PaymentID != nil {
		builder = builder.Where(squirrel.Eq{"payment_id": *filter.PaymentID})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		builder = builder.Offset(filter.Offset)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build refund query: %w", err)
	}

	requests := []models.RefundRequest{}
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list refund requests: %w", err)
	}
	return requests, nil
}
