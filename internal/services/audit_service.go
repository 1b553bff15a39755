package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/carenest/therapy-booking/internal/database"
	"github.com/carenest/therapy-booking/internal/models"
	"github.com/carenest/therapy-booking/internal/utils"
)

// AuditService appends state-changing actions to booking_audit_logs
type AuditService struct {
	db database.DB
}

// NewAuditService creates a new audit service
func NewAuditService(db database.DB) *AuditService {
	return &AuditService{db: db}
}

// AuditEvent is one action to be recorded
type AuditEvent struct {
	ActorID    *uuid.UUID
	Action     string // one of the models.Audit* constants
	EntityType string // booking, payment, refund_request, setting
	EntityID   *uuid.UUID
	FromStatus string
	ToStatus   string
	IPAddress  string
	UserAgent  string
	Details    map[string]interface{}
}

// Record writes the event. A nil service records nothing.
func (s *AuditService) Record(ctx context.Context, event AuditEvent) error {
	if s == nil || s.db == nil {
		return nil
	}

	details := event.Details
	if details == nil {
		details = make(map[string]interface{})
	}
	if event.UserAgent != "" {
		details["device_info"] = utils.ParseUserAgent(event.UserAgent)
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	query := `
		INSERT INTO booking_audit_logs (actor_id, action, entity_type, entity_id, from_status, to_status, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ActorID,
		event.Action,
		event.EntityType,
		event.EntityID,
		nullable(event.FromStatus),
		nullable(event.ToStatus),
		nullable(event.IPAddress),
		nullable(event.UserAgent),
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}
	return nil
}

// ListForEntity returns the audit trail of one entity, newest first
// A disabled audit log has no trail.
func (s *AuditService) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.BookingAuditLog, error) {
	if s == nil || s.db == nil {
		return []models.BookingAuditLog{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, actor_id, action, entity_type, entity_id, from_status, to_status, ip_address, user_agent, details, created_at
		FROM booking_audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
	logs := []models.BookingAuditLog{}
	if err := s.db.SelectContext(ctx, &logs, query, entityType, entityID, limit); err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return logs, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
