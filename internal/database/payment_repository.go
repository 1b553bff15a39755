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

// PaymentRepository handles database operations for payments
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	id, guardian_id, child_id, provider_id, session_type, total_sessions,
	original_fee, discount_rate, final_fee, platform_fee, refund_amount,
	visit_address, visit_address_detail, note, settings_version,
	paid_at, refunded_at, created_at, updated_at`

// Create inserts a payment. ID and timestamps are assigned by the caller.
func (r *PaymentRepository) Create(ctx context.Context, q Queryer, p *models.Payment) error {
	query := `
		INSERT INTO payments (
			id, guardian_id, child_id, provider_id, session_type, total_sessions,
			original_fee, discount_rate, final_fee, platform_fee,
			visit_address, visit_address_detail, note, settings_version,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := q.ExecContext(ctx, query,
		p.ID, p.GuardianID, p.ChildID, p.ProviderID, p.SessionType, p.TotalSessions,
		p.OriginalFee, p.DiscountRate, p.FinalFee, p.PlatformFee,
		p.VisitAddress, p.VisitAddressDetail, p.Note, p.SettingsVersion,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByID returns ErrNotFound when the payment does not exist
func (r *PaymentRepository) GetByID(ctx context.Context, q Queryer, id uuid.UUID) (*models.Payment, error) {
	return r.get(ctx, use(q, r.db), `SELECT`+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// LockByID reads the payment with FOR UPDATE inside q's transaction
func (r *PaymentRepository) LockByID(ctx context.Context, q Queryer, id uuid.UUID) (*models.Payment, error) {
	return r.get(ctx, q, `SELECT`+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
}

func (r *PaymentRepository) get(ctx context.Context, q Queryer, query string, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	if err := sqlx.GetContext(ctx, q, &p, query, id); err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// MarkPaid records operator-confirmed receipt of funds. Reports false if already paid.
func (r *PaymentRepository) MarkPaid(ctx context.Context, q Queryer, id uuid.UUID, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE payments SET paid_at = $1, updated_at = $1
		WHERE id = $2 AND paid_at IS NULL`, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

// RecordRefund stores the approved refund amount. Reports false if a refund was already recorded.
func (r *PaymentRepository) RecordRefund(ctx context.Context, q Queryer, id uuid.UUID, amount int64, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE payments SET refund_amount = $1, refunded_at = $2, updated_at = $2
		WHERE id = $3 AND refunded_at IS NULL`, amount, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to record refund: %w", err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

// List returns payments matching the filter, newest first
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	builder := psql.Select(paymentColumns).From("payments").OrderBy("created_at DESC")

	if filter.GuardianID != nil {
		builder = builder.Where(squirrel.Eq{"guardian_id": *filter.GuardianID})
	}
	if filter.ProviderID != nil {
		builder = builder.Where(squirrel.Eq{"provider_id": *filter.ProviderID})
	}
	if filter.ChildID != nil {
		builder = builder.Where(squirrel.Eq{"child_id": *filter.ChildID})
	}
	if filter.SessionType != nil {
		builder = builder.Where(squirrel.Eq{"session_type": *filter.SessionType})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		builder = builder.Offset(filter.Offset)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build payment query: %w", err)
	}

	payments := []models.Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
