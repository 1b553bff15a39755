package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

var slotRowColumns = []string{
	"id", "provider_id", "slot_date", "start_time", "end_time",
	"is_available", "is_holiday", "is_buffer_blocked", "current_reservation_count",
	"created_at", "updated_at",
}

func slotRow(rows *sqlmock.Rows, id, providerID uuid.UUID, count int) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id.String(), providerID.String(), now, "10:00", "10:50", true, false, false, count, now, now)
}

var paymentRowColumns = []string{
	"id", "guardian_id", "child_id", "provider_id", "session_type", "total_sessions",
	"original_fee", "discount_rate", "final_fee", "platform_fee", "refund_amount",
	"visit_address", "visit_address_detail", "note", "settings_version",
	"paid_at", "refunded_at", "created_at", "updated_at",
}

var bookingRowColumns = []string{
	"id", "payment_id", "time_slot_id", "session_number", "scheduled_at", "status",
	"journal_submitted_at", "settled_at", "cancelled_at", "created_at", "updated_at",
}

var refundRowColumns = []string{
	"id", "payment_id", "requester_id", "requested_amount", "reason", "status",
	"approved_amount", "rejection_reason", "admin_note", "processed_by", "processed_at",
	"created_at", "updated_at",
}
