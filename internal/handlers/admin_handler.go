package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carenest/therapy-booking/internal/models"
)

// SettingsManager reads and updates platform settings
type SettingsManager interface {
	List(ctx context.Context) ([]models.SystemSetting, error)
	Get(ctx context.Context, key string) (*models.SystemSetting, error)
	Update(ctx context.Context, key, value string) (*models.SystemSetting, error)
}

// AuditTrail reads audit rows back
type AuditTrail interface {
	ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.BookingAuditLog, error)
}

// AdminHandler handles operator requests
type AdminHandler struct {
	lifecycle BookingLifecycle
	settings  SettingsManager
	trail     AuditTrail
	audit     auditLogger
	logger    *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	lifecycle BookingLifecycle,
	settings SettingsManager,
	trail AuditTrail,
	audit AuditRecorder,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		lifecycle: lifecycle,
		settings:  settings,
		trail:     trail,
		audit:     auditLogger{recorder: audit, logger: logger},
		logger:    logger,
	}
}

// ===================================================================
// PAYMENTS & BOOKINGS
// ===================================================================

// ConfirmPayment handles POST /api/v1/admin/payments/:id/confirm
// Marks the remittance as received and confirms every pending session.
func (h *AdminHandler) ConfirmPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	paymentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	payment, err := h.lifecycle.ConfirmPayment(c.Request.Context(), paymentID, actor.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.audit.safeAudit(c, actor, models.AuditPaymentConfirmed, "payment", payment.ID,
		string(models.PaymentPendingPayment), string(payment.Status), nil)

	c.JSON(http.StatusOK, payment)
}

// CompleteSettlement handles POST /api/v1/admin/bookings/:id/settle
func (h *AdminHandler) CompleteSettlement(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.lifecycle.CompleteSettlement(c.Request.Context(), bookingID, actor.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.audit.safeAudit(c, actor, models.AuditSettlementCompleted, "booking", booking.ID,
		string(models.BookingPendingSettlement), string(booking.Status), nil)

	c.JSON(http.StatusOK, booking)
}

// UpdateBookingStatus handles POST /api/v1/admin/bookings/:id/status
// Accepts CANCELLED, REJECTED and NO_SHOW.
func (h *AdminHandler) UpdateBookingStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.OperatorStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.lifecycle.ApplyOperatorAction(c.Request.Context(), bookingID, actor.UserID, req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var details map[string]interface{}
	if req.Reason != nil {
		details = map[string]interface{}{"reason": *req.Reason}
	}
	h.audit.safeAudit(c, actor, models.AuditOperatorStatus, "booking", booking.ID, "", string(booking.Status), details)

	c.JSON(http.StatusOK, booking)
}

// ===================================================================
// SETTINGS
// ===================================================================

// ListSettings handles GET /api/v1/admin/settings
func (h *AdminHandler) ListSettings(c *gin.Context) {
	settings, err := h.settings.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// GetSetting handles GET /api/v1/admin/settings/:key
func (h *AdminHandler) GetSetting(c *gin.Context) {
	setting, err := h.settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

// UpdateSetting handles PUT /api/v1/admin/settings/:key
func (h *AdminHandler) UpdateSetting(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req models.UpdateSystemSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	setting, err := h.settings.Update(c.Request.Context(), c.Param("key"), req.SettingValue)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.audit.safeAudit(c, actor, models.AuditSettingUpdated, "setting", setting.ID, "", "",
		map[string]interface{}{
			"setting_key": setting.SettingKey,
			"value":       setting.SettingValue,
			"version":     setting.Version,
		})

	c.JSON(http.StatusOK, setting)
}

// ===================================================================
// AUDIT TRAIL
// ===================================================================

// GetAuditTrail handles GET /api/v1/admin/audit-logs/:entity_type/:id?limit=
func (h *AdminHandler) GetAuditTrail(c *gin.Context) {
	entityID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, h.logger, models.NewValidationError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries, err := h.trail.ListForEntity(c.Request.Context(), c.Param("entity_type"), entityID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   len(entries),
	})
}
