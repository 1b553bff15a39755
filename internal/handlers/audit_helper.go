package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carenest/therapy-booking/internal/models"
	"github.com/carenest/therapy-booking/internal/services"
	"github.com/carenest/therapy-booking/internal/utils"
)

// AuditRecorder appends audit rows
type AuditRecorder interface {
	Record(ctx context.Context, event services.AuditEvent) error
}

// auditLogger records audit events without failing the request they describe
type auditLogger struct {
	recorder AuditRecorder
	logger   *logrus.Logger
}

func (a auditLogger) safeAudit(c *gin.Context, actor models.Actor, action, entityType string, entityID uuid.UUID, from, to string, details map[string]interface{}) {
	if a.recorder == nil {
		return
	}
	actorID := actor.UserID
	event := services.AuditEvent{
		ActorID:    &actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   &entityID,
		FromStatus: from,
		ToStatus:   to,
		IPAddress:  utils.GetRealIP(c),
		UserAgent:  utils.GetUserAgent(c),
		Details:    details,
	}
	if err := a.recorder.Record(c.Request.Context(), event); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"action":    action,
			"entity_id": entityID,
		}).Error("AUDIT ERROR")
	}
}
