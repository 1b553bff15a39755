package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carenest/therapy-booking/internal/database"
	"github.com/carenest/therapy-booking/internal/models"
)

func putSlot(s *memStore, providerID uuid.UUID, day int, mutate func(*models.TimeSlot)) uuid.UUID {
	slot := models.TimeSlot{
		ID:          uuid.New(),
		ProviderID:  providerID,
		SlotDate:    time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
		StartTime:   "10:00",
		EndTime:     "10:50",
		IsAvailable: true,
	}
	if mutate != nil {
		mutate(&slot)
	}
	s.mu.Lock()
	s.slots[slot.ID] = slot
	s.mu.Unlock()
	return slot.ID
}

func TestSlotStore_ReserveKeepsRequestOrder(t *testing.T) {
	store := newMemStore()
	providerID := uuid.New()
	first := putSlot(store, providerID, 9, nil)
	second := putSlot(store, providerID, 2, nil)
	slots := NewSlotStore(fakeSlots{store}, nil)

	var reserved []models.TimeSlot
	err := store.WithTx(context.Background(), func(q database.Queryer) error {
		var err error
		reserved, err = slots.Reserve(context.Background(), q, []uuid.UUID{first, second}, providerID)
		return err
	})
	require.NoError(t, err)

	require.Len(t, reserved, 2)
	assert.Equal(t, first, reserved[0].ID)
	assert.Equal(t, second, reserved[1].ID)
	assert.Equal(t, 1, reserved[0].CurrentReservationCount)
	assert.Equal(t, 1, store.slot(second).CurrentReservationCount)
}

func TestSlotStore_Rejections(t *testing.T) {
	store := newMemStore()
	providerID := uuid.New()
	open := putSlot(store, providerID, 2, nil)
	holiday := putSlot(store, providerID, 3, func(s *models.TimeSlot) { s.IsHoliday = true })
	buffer := putSlot(store, providerID, 4, func(s *models.TimeSlot) { s.IsBufferBlocked = true })
	taken := putSlot(store, providerID, 5, func(s *models.TimeSlot) { s.CurrentReservationCount = 1 })
	closed := putSlot(store, providerID, 6, func(s *models.TimeSlot) { s.IsAvailable = false })
	foreign := putSlot(store, uuid.New(), 7, nil)
	slots := NewSlotStore(fakeSlots{store}, nil)

	tests := []struct {
		name string
		ids  []uuid.UUID
		kind models.ErrorKind
	}{
		{"empty", nil, models.ErrKindValidation},
		{"duplicate", []uuid.UUID{open, open}, models.ErrKindValidation},
		{"nil id", []uuid.UUID{uuid.Nil}, models.ErrKindValidation},
		{"unknown", []uuid.UUID{open, uuid.New()}, models.ErrKindNotFound},
		{"other provider", []uuid.UUID{open, foreign}, models.ErrKindCrossProvider},
		{"holiday", []uuid.UUID{open, holiday}, models.ErrKindSlotUnavailable},
		{"buffer", []uuid.UUID{buffer}, models.ErrKindSlotUnavailable},
		{"already reserved", []uuid.UUID{taken}, models.ErrKindSlotUnavailable},
		{"closed", []uuid.UUID{closed}, models.ErrKindSlotUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := slots.Check(context.Background(), tt.ids, providerID)
			require.Error(t, err)
			assert.Equal(t, tt.kind, models.KindOf(err))

			err = store.WithTx(context.Background(), func(q database.Queryer) error {
				_, err := slots.Reserve(context.Background(), q, tt.ids, providerID)
				return err
			})
			assert.Equal(t, tt.kind, models.KindOf(err))
			assert.Equal(t, 0, store.slot(open).CurrentReservationCount)
		})
	}
}

func TestSlotStore_SingleWinnerUnderContention(t *testing.T) {
	store := newMemStore()
	providerID := uuid.New()
	contested := putSlot(store, providerID, 2, nil)
	slots := NewSlotStore(fakeSlots{store}, nil)

	var wins, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithTx(context.Background(), func(q database.Queryer) error {
				_, err := slots.Reserve(context.Background(), q, []uuid.UUID{contested}, providerID)
				return err
			})
			switch models.KindOf(err) {
			case "":
				atomic.AddInt32(&wins, 1)
			case models.ErrKindSlotUnavailable:
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(15), conflicts)
	assert.Equal(t, 1, store.slot(contested).CurrentReservationCount)
}

func TestSlotStore_ListAvailable(t *testing.T) {
	store := newMemStore()
	providerID := uuid.New()
	putSlot(store, providerID, 2, nil)
	putSlot(store, providerID, 3, func(s *models.TimeSlot) { s.IsHoliday = true })
	putSlot(store, providerID, 20, nil)
	slots := NewSlotStore(fakeSlots{store}, nil)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	open, err := slots.ListAvailable(context.Background(), providerID, from, to)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, 2, open[0].SlotDate.Day())

	_, err = slots.ListAvailable(context.Background(), providerID, to, from)
	assert.Equal(t, models.ErrKindValidation, models.KindOf(err))
}
