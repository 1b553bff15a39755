package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carenest/therapy-booking/internal/models"
	"github.com/carenest/therapy-booking/internal/services"
)

// BookingCreator creates booking groups
type BookingCreator interface {
	CreateBookingGroup(ctx context.Context, cmd services.CreateBookingGroupCommand) (*models.BookingGroupResult, error)
}

// BookingLifecycle moves bookings through their statuses and answers booking queries
type BookingLifecycle interface {
	ConfirmPayment(ctx context.Context, paymentID, operatorID uuid.UUID) (*models.Payment, error)
	SubmitJournal(ctx context.Context, bookingID, providerUserID uuid.UUID, content string) (*models.SessionBooking, error)
	CompleteSettlement(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.SessionBooking, error)
	ApplyOperatorAction(ctx context.Context, bookingID, operatorID uuid.UUID, target models.BookingStatus) (*models.SessionBooking, error)
	SubmitReview(ctx context.Context, bookingID, guardianID uuid.UUID, rating int, content *string) (*models.SessionReview, error)
	ListBookings(ctx context.Context, actor models.Actor, filter models.BookingFilter) ([]models.BookingView, error)
	GetBooking(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.BookingDetail, error)
}

// BookingHandler handles guardian and therapist booking requests
type BookingHandler struct {
	creator   BookingCreator
	lifecycle BookingLifecycle
	audit     auditLogger
	logger    *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(creator BookingCreator, lifecycle BookingLifecycle, audit AuditRecorder, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		creator:   creator,
		lifecycle: lifecycle,
		audit:     auditLogger{recorder: audit, logger: logger},
		logger:    logger,
	}
}

// CreateBookingGroup handles POST /api/v1/bookings
func (h *BookingHandler) CreateBookingGroup(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req models.CreateBookingGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cmd := services.CreateBookingGroupCommand{
		GuardianID:         actor.UserID,
		ChildID:            req.ChildID,
		SessionType:        req.SessionType,
		SessionCount:       req.SessionCount,
		SlotIDs:            req.SlotIDs,
		VisitAddress:       strings.TrimSpace(req.VisitAddress),
		VisitAddressDetail: req.VisitAddressDetail,
		Note:               req.Note,
	}
	if req.ProviderID != nil {
		cmd.ProviderID = *req.ProviderID
	}

	result, err := h.creator.CreateBookingGroup(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.audit.safeAudit(c, actor, models.AuditBookingGroupCreated, "payment", result.Payment.ID,
		"", string(result.Payment.Status), map[string]interface{}{
			"session_type":  result.Payment.SessionType,
			"session_count": len(result.Bookings),
			"final_fee":     result.Payment.FinalFee,
		})

	c.JSON(http.StatusCreated, result)
}

// ListBookings handles GET /api/v1/bookings?status=&child_id=&session_type=&limit=&offset=
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	filter, err := parseBookingFilter(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	bookings, err := h.lifecycle.ListBookings(c.Request.Context(), actor, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"total":    len(bookings),
	})
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.lifecycle.GetBooking(c.Request.Context(), actor, bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// SubmitJournal handles POST /api/v1/bookings/:id/journal (therapist only)
func (h *BookingHandler) SubmitJournal(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.SubmitJournalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.lifecycle.SubmitJournal(c.Request.Context(), bookingID, actor.UserID, req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.audit.safeAudit(c, actor, models.AuditJournalSubmitted, "booking", booking.ID,
		string(models.BookingConfirmed), string(booking.Status), nil)

	c.JSON(http.StatusOK, booking)
}

// SubmitReview handles POST /api/v1/bookings/:id/review (guardian only)
func (h *BookingHandler) SubmitReview(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	review, err := h.lifecycle.SubmitReview(c.Request.Context(), bookingID, actor.UserID, req.Rating, req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.audit.safeAudit(c, actor, models.AuditReviewSubmitted, "booking", bookingID, "", "",
		map[string]interface{}{"rating": review.Rating})

	c.JSON(http.StatusCreated, review)
}

func parseBookingFilter(c *gin.Context) (models.BookingFilter, error) {
	var filter models.BookingFilter

	if raw := c.Query("child_id"); raw != "" {
		childID, err := uuid.Parse(raw)
		if err != nil {
			return filter, models.NewValidationError("child_id must be a UUID")
		}
		filter.ChildID = &childID
	}

	if raw := c.Query("session_type"); raw != "" {
		sessionType := models.SessionType(strings.ToLower(raw))
		if !sessionType.IsValid() {
			return filter, models.NewValidationError("unknown session_type " + raw)
		}
		filter.SessionType = &sessionType
	}

	bookingStatuses, paymentStatuses, err := parseStatusList(c.Query("status"))
	if err != nil {
		return filter, err
	}
	filter.BookingStatuses = bookingStatuses
	filter.PaymentStatuses = paymentStatuses

	if filter.Limit, err = parseUintQuery(c, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseUintQuery(c, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

// parseStatusList splits a comma list of status names. A name may be a booking status,
// a payment status or both; each is added to every list it belongs to.
func parseStatusList(raw string) ([]models.BookingStatus, []models.PaymentStatus, error) {
	var bookingStatuses []models.BookingStatus
	var paymentStatuses []models.PaymentStatus

	for _, part := range strings.Split(raw, ",") {
		name := strings.ToUpper(strings.TrimSpace(part))
		if name == "" {
			continue
		}

		known := false
		if s := models.BookingStatus(name); s.IsValid() {
			bookingStatuses = append(bookingStatuses, s)
			known = true
		}
		if s := models.PaymentStatus(name); s.IsValid() {
			paymentStatuses = append(paymentStatuses, s)
			known = true
		}
		if !known {
			return nil, nil, models.NewValidationError("unknown status "+name).WithDetail("status", name)
		}
	}
	return bookingStatuses, paymentStatuses, nil
}
