package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carenest/therapy-booking/internal/database"
	"github.com/carenest/therapy-booking/internal/models"
)

func setupAuditTest(t *testing.T) (*AuditService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewAuditService(&database.PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}), mock
}

func TestAuditService_Record(t *testing.T) {
	service, mock := setupAuditTest(t)

	actorID := uuid.New()
	bookingID := uuid.New()

	mock.ExpectExec("INSERT INTO booking_audit_logs").
		WithArgs(&actorID, models.AuditOperatorStatus, "booking", &bookingID,
			"CONFIRMED", "NO_SHOW", "203.0.113.4", "curl/8.0", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := service.Record(context.Background(), AuditEvent{
		ActorID:    &actorID,
		Action:     models.AuditOperatorStatus,
		EntityType: "booking",
		EntityID:   &bookingID,
		FromStatus: "CONFIRMED",
		ToStatus:   "NO_SHOW",
		IPAddress:  "203.0.113.4",
		UserAgent:  "curl/8.0",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_RecordError(t *testing.T) {
	service, mock := setupAuditTest(t)

	mock.ExpectExec("INSERT INTO booking_audit_logs").
		WillReturnError(errors.New("connection reset"))

	err := service.Record(context.Background(), AuditEvent{Action: models.AuditRefundRequested, EntityType: "refund_request"})
	assert.ErrorContains(t, err, "failed to log audit event")
}

func TestAuditService_NilIsNoop(t *testing.T) {
	var service *AuditService
	assert.NoError(t, service.Record(context.Background(), AuditEvent{Action: models.AuditRefundApproved}))

	logs, err := service.ListForEntity(context.Background(), "booking", uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.NotNil(t, logs)
}

func TestAuditService_ListForEntity(t *testing.T) {
	service, mock := setupAuditTest(t)
	paymentID := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "actor_id", "action", "entity_type", "entity_id",
		"from_status", "to_status", "ip_address", "user_agent", "details", "created_at"}).
		AddRow(int64(2), nil, models.AuditPaymentConfirmed, "payment", paymentID.String(),
			"PENDING_PAYMENT", "PAID", nil, nil, []byte(`{}`), time.Now())

	mock.ExpectQuery("SELECT (.+) FROM booking_audit_logs").
		WithArgs("payment", paymentID, 100).
		WillReturnRows(rows)

	logs, err := service.ListForEntity(context.Background(), "payment", paymentID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditPaymentConfirmed, logs[0].Action)
	assert.Equal(t, paymentID, *logs[0].EntityID)
}
