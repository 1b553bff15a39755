package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carenest/therapy-booking/internal/models"
)

// RefundWorkflow is the refund request lifecycle
type RefundWorkflow interface {
	RequestRefund(ctx context.Context, paymentID, requesterID uuid.UUID, reason string, requestedAmount int64) (*models.RefundRequest, error)
	Approve(ctx context.Context, requestID, operatorID uuid.UUID, approvedAmount int64, note *string) (*models.RefundRequest, error)
	Reject(ctx context.Context, requestID, operatorID uuid.UUID, reason string, note *string) (*models.RefundRequest, error)
	Get(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*models.RefundRequestDetail, error)
	List(ctx context.Context, filter models.RefundFilter) ([]models.RefundRequest, error)
}

// RefundHandler handles refund request endpoints
type RefundHandler struct {
	refunds RefundWorkflow
	audit   auditLogger
	logger  *logrus.Logger
}

// NewRefundHandler creates a new refund handler
func NewRefundHandler(refunds RefundWorkflow, audit AuditRecorder, logger *logrus.Logger) *RefundHandler {
	return &RefundHandler{
		refunds: refunds,
		audit:   auditLogger{recorder: audit, logger: logger},
		logger:  logger,
	}
}

// CreateRefundRequest handles POST /api/v1/refund-requests (guardian only)
func (h *RefundHandler) CreateRefundRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req models.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	refund, err := h.refunds.RequestRefund(c.Request.Context(), req.PaymentID, actor.UserID, strings.TrimSpace(req.Reason), req.RequestedAmount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.audit.safeAudit(c, actor, models.AuditRefundRequested, "refund_request", refund.ID,
		"", string(refund.Status), map[string]interface{}{
			"payment_id":       refund.PaymentID,
			"requested_amount": refund.RequestedAmount,
		})

	c.JSON(http.StatusCreated, refund)
}

// GetRefundRequest handles GET /api/v1/refund-requests/:id
func (h *RefundHandler) GetRefundRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.refunds.Get(c.Request.Context(), actor, requestID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// ApproveRefundRequest handles POST /api/v1/refund-requests/:id/approve (admin only)
func (h *RefundHandler) ApproveRefundRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.ApproveRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	refund, err := h.refunds.Approve(c.Request.Context(), requestID, actor.UserID, req.ApprovedAmount, req.Note)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.audit.safeAudit(c, actor, models.AuditRefundApproved, "refund_request", refund.ID,
		string(models.RefundPending), string(refund.Status), map[string]interface{}{
			"payment_id":      refund.PaymentID,
			"approved_amount": req.ApprovedAmount,
		})

	c.JSON(http.StatusOK, refund)
}

// RejectRefundRequest handles POST /api/v1/refund-requests/:id/reject (admin only)
func (h *RefundHandler) RejectRefundRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.RejectRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	refund, err := h.refunds.Reject(c.Request.Context(), requestID, actor.UserID, strings.TrimSpace(req.RejectionReason), req.Note)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.audit.safeAudit(c, actor, models.AuditRefundRejected, "refund_request", refund.ID,
		string(models.RefundPending), string(refund.Status), map[string]interface{}{
			"payment_id": refund.PaymentID,
			"reason":     req.RejectionReason,
		})

	c.JSON(http.StatusOK, refund)
}

// ListRefundRequests handles GET /api/v1/admin/refund-requests?status=&payment_id=&limit=&offset=
func (h *RefundHandler) ListRefundRequests(c *gin.Context) {
	var filter models.RefundFilter

	if raw := c.Query("status"); raw != "" {
		status := models.RefundStatus(strings.ToUpper(raw))
		filter.Status = &status
	}
	if raw := c.Query("payment_id"); raw != "" {
		paymentID, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, h.logger, models.NewValidationError("payment_id must be a UUID"))
			return
		}
		filter.PaymentID = &paymentID
	}
	var err error
	if filter.Limit, err = parseUintQuery(c, "limit"); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if filter.Offset, err = parseUintQuery(c, "offset"); err != nil {
		respondError(c, h.logger, err)
		return
	}

	refunds, err := h.refunds.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refund_requests": refunds,
		"total":           len(refunds),
	})
}

func parseUintQuery(c *gin.Context, name string) (uint64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, models.NewValidationError(name + " must be a non-negative integer")
	}
	return v, nil
}
