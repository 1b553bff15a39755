package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeSlot is a provider-published window that can host one session
type TimeSlot struct {
	ID                      uuid.UUID `json:"id" db:"id"`
	ProviderID              uuid.UUID `json:"provider_id" db:"provider_id"`
	SlotDate                time.Time `json:"slot_date" db:"slot_date"`
	StartTime               string    `json:"start_time" db:"start_time"`
	EndTime                 string    `json:"end_time" db:"end_time"`
	IsAvailable             bool      `json:"is_available" db:"is_available"`
	IsHoliday               bool      `json:"is_holiday" db:"is_holiday"`
	IsBufferBlocked         bool      `json:"is_buffer_blocked" db:"is_buffer_blocked"`
	CurrentReservationCount int       `json:"current_reservation_count" db:"current_reservation_count"`
	CreatedAt               time.Time `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time `json:"updated_at" db:"updated_at"`
}

// UnavailableReason returns why the slot cannot be reserved, or "" if it can
func (s *TimeSlot) UnavailableReason() string {
	switch {
	case !s.IsAvailable:
		return "slot is closed"
	case s.IsHoliday:
		return "slot falls on a holiday"
	case s.IsBufferBlocked:
		return "slot is blocked as a buffer"
	case s.CurrentReservationCount > 0:
		return "slot is already reserved"
	}
	return ""
}

// IsReservable reports whether the slot can take a booking
func (s *TimeSlot) IsReservable() bool {
	return s.UnavailableReason() == ""
}

// ScheduledAt combines the slot date and start time in loc
func (s *TimeSlot) ScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	var clock time.Time
	var err error
	for _, layout := range []string{"15:04:05", "15:04"} {
		clock, err = time.Parse(layout, s.StartTime)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot start time %q: %w", s.StartTime, err)
	}
	y, m, d := s.SlotDate.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), 0, loc), nil
}
