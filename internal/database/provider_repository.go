package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carenest/therapy-booking/internal/models"
)

// ProviderRepository reads the provider records owned by provider onboarding
type ProviderRepository struct {
	db DB
}

// NewProviderRepository creates a new ProviderRepository
func NewProviderRepository(db DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

const providerColumns = `
	id, user_id, display_name, status, per_session_rate, consultation_fee,
	consultation_settlement_amount, service_areas, created_at, updated_at`

// GetByID returns ErrNotFound when the provider does not exist
func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	return r.get(ctx, `SELECT`+providerColumns+` FROM providers WHERE id = $1`, id)
}

// GetByUserID resolves the provider profile of a therapist account
func (r *ProviderRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Provider, error) {
	return r.get(ctx, `SELECT`+providerColumns+` FROM providers WHERE user_id = $1`, userID)
}

func (r *ProviderRepository) get(ctx context.Context, query string, id uuid.UUID) (*models.Provider, error) {
	var p models.Provider
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &p, nil
}
