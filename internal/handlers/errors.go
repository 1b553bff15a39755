package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carenest/therapy-booking/internal/middleware"
	"github.com/carenest/therapy-booking/internal/models"
	"github.com/carenest/therapy-booking/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

var statusByKind = map[models.ErrorKind]int{
	models.ErrKindValidation:             http.StatusBadRequest,
	models.ErrKindSlotUnavailable:        http.StatusBadRequest,
	models.ErrKindCrossProvider:          http.StatusBadRequest,
	models.ErrKindMissingRateCard:        http.StatusBadRequest,
	models.ErrKindAddressMismatch:        http.StatusBadRequest,
	models.ErrKindUnauthorized:           http.StatusUnauthorized,
	models.ErrKindForbidden:              http.StatusForbidden,
	models.ErrKindProviderNotApproved:    http.StatusForbidden,
	models.ErrKindNotFound:               http.StatusNotFound,
	models.ErrKindInvalidStateTransition: http.StatusConflict,
	models.ErrKindAlreadyProcessed:       http.StatusConflict,
	models.ErrKindRefundAlreadyPending:   http.StatusConflict,
	models.ErrKindRefundNotEligible:      http.StatusConflict,
	models.ErrKindAlreadyRefunded:        http.StatusConflict,
	models.ErrKindConcurrencyConflict:    http.StatusConflict,
}

// HTTPStatus returns the response status for err
func HTTPStatus(err error) int {
	var limited *services.RateLimitError
	if errors.As(err, &limited) {
		return http.StatusTooManyRequests
	}
	if status, ok := statusByKind[models.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes err in the API error format. Unclassified errors are logged and
// answered with a generic 500 body.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var be *models.BookingError
	if errors.As(err, &be) {
		c.JSON(HTTPStatus(err), ErrorResponse{
			Error:   string(be.Kind),
			Message: be.Message,
			Code:    be.Code,
			Details: be.Details,
		})
		return
	}

	var limited *services.RateLimitError
	if errors.As(err, &limited) {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:   "rate_limited",
			Message: limited.Message,
			Code:    "RATE_LIMIT_EXCEEDED",
		})
		return
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).Error("Request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An unexpected error occurred",
		Code:    "INTERNAL_ERROR",
	})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   string(models.ErrKindValidation),
		Message: "Invalid request body: " + err.Error(),
		Code:    "VALIDATION_ERROR",
	})
}

// parseIDParam reads a UUID path parameter, answering 400 when it is malformed
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid " + strings.ReplaceAll(name, "_", " ") + " format",
			Code:    "INVALID_ID",
		})
		return uuid.Nil, false
	}
	return id, true
}

// actorFromContext returns the authenticated caller or answers 401
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   string(models.ErrKindUnauthorized),
			Message: "User context not found",
			Code:    "UNAUTHORIZED",
		})
		return models.Actor{}, false
	}
	return userCtx.Actor(), true
}
