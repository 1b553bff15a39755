package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carenest/therapy-booking/internal/models"
)

const maxSlotRange = 62 * 24 * time.Hour

// SlotLister lists a provider's reservable slots
type SlotLister interface {
	ListAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]models.TimeSlot, error)
}

// SlotHandler serves the public slot calendar
type SlotHandler struct {
	slots    SlotLister
	location *time.Location
	logger   *logrus.Logger
	now      func() time.Time
}

// NewSlotHandler creates a new slot handler. Dates are read in location.
func NewSlotHandler(slots SlotLister, location *time.Location, logger *logrus.Logger) *SlotHandler {
	return &SlotHandler{slots: slots, location: location, logger: logger, now: time.Now}
}

// ListProviderSlots handles GET /api/v1/providers/:id/slots?from=YYYY-MM-DD&to=YYYY-MM-DD
// The range defaults to the next 14 days.
func (h *SlotHandler) ListProviderSlots(c *gin.Context) {
	providerID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	today := h.now().In(h.location)
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, h.location)
	to := from.AddDate(0, 0, 14)

	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.ParseInLocation("2006-01-02", raw, h.location); err != nil {
			respondError(c, h.logger, models.NewValidationError("from must be a date in YYYY-MM-DD format"))
			return
		}
		if c.Query("to") == "" {
			to = from.AddDate(0, 0, 14)
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.ParseInLocation("2006-01-02", raw, h.location); err != nil {
			respondError(c, h.logger, models.NewValidationError("to must be a date in YYYY-MM-DD format"))
			return
		}
	}
	if to.Before(from) {
		respondError(c, h.logger, models.NewValidationError("to must not be before from"))
		return
	}
	if to.Sub(from) > maxSlotRange {
		respondError(c, h.logger, models.NewValidationError("date range must not exceed 62 days"))
		return
	}

	slots, err := h.slots.ListAvailable(c.Request.Context(), providerID, from, to)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider_id": providerID,
		"from":        from.Format("2006-01-02"),
		"to":          to.Format("2006-01-02"),
		"slots":       slots,
		"total":       len(slots),
	})
}
