package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carenest/therapy-booking/internal/models"
)

// ChildRepository reads children and guardian profiles owned by account management
type ChildRepository struct {
	db DB
}

// NewChildRepository creates a new ChildRepository
func NewChildRepository(db DB) *ChildRepository {
	return &ChildRepository{db: db}
}

// GetByID returns ErrNotFound when the child does not exist
func (r *ChildRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Child, error) {
	var child models.Child
	err := r.db.GetContext(ctx, &child, `
		SELECT id, guardian_id, name, birth_date, created_at
		FROM children WHERE id = $1`, id)
	if err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	return &child, nil
}

// GetServiceAddress returns the guardian's registered service address
func (r *ChildRepository) GetServiceAddress(ctx context.Context, guardianID uuid.UUID) (string, error) {
	var address string
	err := r.db.GetContext(ctx, &address,
		`SELECT service_address FROM guardian_profiles WHERE user_id = $1`, guardianID)
	if err != nil {
		if err = notFound(err); err == ErrNotFound {
			return "", err
		}
		return "", fmt.Errorf("failed to get guardian service address: %w", err)
	}
	return address, nil
}
