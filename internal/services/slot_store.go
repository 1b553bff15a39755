package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carenest/therapy-booking/internal/database"
	"github.com/carenest/therapy-booking/internal/models"
	"github.com/carenest/therapy-booking/pkg/metrics"
)

// SlotStore decides slot availability and takes reservations
type SlotStore struct {
	repo    SlotRepository
	metrics *metrics.Metrics
}

// NewSlotStore creates a new SlotStore
func NewSlotStore(repo SlotRepository, m *metrics.Metrics) *SlotStore {
	return &SlotStore{repo: repo, metrics: m}
}

// Check validates the slots without locking or reserving them. The result is advisory;
// Reserve re-checks under lock.
func (s *SlotStore) Check(ctx context.Context, slotIDs []uuid.UUID, providerID uuid.UUID) ([]models.TimeSlot, error) {
	if err := validateSlotIDs(slotIDs); err != nil {
		return nil, err
	}

	slots, err := s.repo.GetByIDs(ctx, nil, slotIDs)
	if err != nil {
		return nil, err
	}
	return orderAndValidate(slotIDs, slots, providerID)
}

// Reserve locks the slots in q's transaction, validates them and takes every one of them.
// Either all slots are taken or an error is returned and the caller must roll back.
// Slots are returned in the order of slotIDs.
func (s *SlotStore) Reserve(ctx context.Context, q database.Queryer, slotIDs []uuid.UUID, providerID uuid.UUID) ([]models.TimeSlot, error) {
	if err := validateSlotIDs(slotIDs); err != nil {
		return nil, err
	}

	locked, err := s.repo.LockByIDs(ctx, q, slotIDs)
	if err != nil {
		return nil, err
	}

	ordered, err := orderAndValidate(slotIDs, locked, providerID)
	if err != nil {
		return nil, err
	}

	for i := range ordered {
		ok, err := s.repo.IncrementReservation(ctx, q, ordered[i].ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.metrics.SlotConflict()
			return nil, models.NewSlotUnavailableError(ordered[i].ID, "slot is already reserved")
		}
		ordered[i].CurrentReservationCount++
	}

	return ordered, nil
}

// ListAvailable returns a provider's open slots between from and to
func (s *SlotStore) ListAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]models.TimeSlot, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, models.NewValidationError("'to' must not be before 'from'")
	}
	return s.repo.ListAvailable(ctx, providerID, from, to)
}

func validateSlotIDs(slotIDs []uuid.UUID) error {
	if len(slotIDs) == 0 {
		return models.NewValidationError("at least one time slot is required")
	}
	seen := make(map[uuid.UUID]bool, len(slotIDs))
	for _, id := range slotIDs {
		if id == uuid.Nil {
			return models.NewValidationError("time slot id must not be empty")
		}
		if seen[id] {
			return models.NewValidationError("time slot " + id.String() + " is listed more than once")
		}
		seen[id] = true
	}
	return nil
}

// orderAndValidate returns slots in request order after checking existence, a single
// provider and reservability, in that order
func orderAndValidate(slotIDs []uuid.UUID, slots []models.TimeSlot, providerID uuid.UUID) ([]models.TimeSlot, error) {
	byID := make(map[uuid.UUID]models.TimeSlot, len(slots))
	for _, slot := range slots {
		byID[slot.ID] = slot
	}

	ordered := make([]models.TimeSlot, 0, len(slotIDs))
	for _, id := range slotIDs {
		slot, ok := byID[id]
		if !ok {
			return nil, models.NewNotFoundError("time slot", id)
		}
		ordered = append(ordered, slot)
	}

	expected := providerID
	if expected == uuid.Nil {
		expected = ordered[0].ProviderID
	}
	for _, slot := range ordered {
		if slot.ProviderID != expected {
			return nil, models.NewCrossProviderError("all time slots must belong to the booked provider").
				WithDetail("slot_id", slot.ID.String())
		}
	}

	for _, slot := range ordered {
		if reason := slot.UnavailableReason(); reason != "" {
			return nil, models.NewSlotUnavailableError(slot.ID, reason)
		}
	}

	return ordered, nil
}
