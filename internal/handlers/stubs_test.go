package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/carenest/therapy-booking/internal/middleware"
	"github.com/carenest/therapy-booking/internal/models"
	"github.com/carenest/therapy-booking/internal/services"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newRouter returns an engine whose requests are authenticated as userID with roles
func newRouter(userID uuid.UUID, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if userID != uuid.Nil {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.UserContextKey, middleware.UserContext{UserID: userID, Roles: roles})
		})
	}
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

type recordingAudit struct {
	events []services.AuditEvent
	err    error
}

func (r *recordingAudit) Record(_ context.Context, event services.AuditEvent) error {
	r.events = append(r.events, event)
	return r.err
}

type stubCreator struct {
	cmd    services.CreateBookingGroupCommand
	result *models.BookingGroupResult
	err    error
}

func (s *stubCreator) CreateBookingGroup(_ context.Context, cmd services.CreateBookingGroupCommand) (*models.BookingGroupResult, error) {
	s.cmd = cmd
	return s.result, s.err
}

type stubLifecycle struct {
	filter  models.BookingFilter
	actor   models.Actor
	target  models.BookingStatus
	userID  uuid.UUID
	content string
	payment *models.Payment
	booking *models.SessionBooking
	review  *models.SessionReview
	views   []models.BookingView
	detail  *models.BookingDetail
	err     error
}

func (s *stubLifecycle) ConfirmPayment(_ context.Context, _, operatorID uuid.UUID) (*models.Payment, error) {
	s.userID = operatorID
	return s.payment, s.err
}

func (s *stubLifecycle) SubmitJournal(_ context.Context, _, providerUserID uuid.UUID, content string) (*models.SessionBooking, error) {
	s.userID, s.content = providerUserID, content
	return s.booking, s.err
}

func (s *stubLifecycle) CompleteSettlement(_ context.Context, _, operatorID uuid.UUID) (*models.SessionBooking, error) {
	s.userID = operatorID
	return s.booking, s.err
}

func (s *stubLifecycle) ApplyOperatorAction(_ context.Context, _, operatorID uuid.UUID, target models.BookingStatus) (*models.SessionBooking, error) {
	s.userID, s.target = operatorID, target
	return s.booking, s.err
}

func (s *stubLifecycle) SubmitReview(_ context.Context, _, guardianID uuid.UUID, _ int, _ *string) (*models.SessionReview, error) {
	s.userID = guardianID
	return s.review, s.err
}

func (s *stubLifecycle) ListBookings(_ context.Context, actor models.Actor, filter models.BookingFilter) ([]models.BookingView, error) {
	s.actor, s.filter = actor, filter
	return s.views, s.err
}

func (s *stubLifecycle) GetBooking(_ context.Context, actor models.Actor, _ uuid.UUID) (*models.BookingDetail, error) {
	s.actor = actor
	return s.detail, s.err
}

type stubRefunds struct {
	amount  int64
	reason  string
	filter  models.RefundFilter
	request *models.RefundRequest
	detail  *models.RefundRequestDetail
	list    []models.RefundRequest
	err     error
}

func (s *stubRefunds) RequestRefund(_ context.Context, _, _ uuid.UUID, reason string, amount int64) (*models.RefundRequest, error) {
	s.reason, s.amount = reason, amount
	return s.request, s.err
}

func (s *stubRefunds) Approve(_ context.Context, _, _ uuid.UUID, amount int64, _ *string) (*models.RefundRequest, error) {
	s.amount = amount
	return s.request, s.err
}

func (s *stubRefunds) Reject(_ context.Context, _, _ uuid.UUID, reason string, _ *string) (*models.RefundRequest, error) {
	s.reason = reason
	return s.request, s.err
}

func (s *stubRefunds) Get(_ context.Context, _ models.Actor, _ uuid.UUID) (*models.RefundRequestDetail, error) {
	return s.detail, s.err
}

func (s *stubRefunds) List(_ context.Context, filter models.RefundFilter) ([]models.RefundRequest, error) {
	s.filter = filter
	return s.list, s.err
}

type stubSettings struct {
	key, value string
	setting    *models.SystemSetting
	err        error
}

func (s *stubSettings) List(context.Context) ([]models.SystemSetting, error) {
	if s.setting == nil {
		return nil, s.err
	}
	return []models.SystemSetting{*s.setting}, s.err
}

func (s *stubSettings) Get(_ context.Context, key string) (*models.SystemSetting, error) {
	s.key = key
	return s.setting, s.err
}

func (s *stubSettings) Update(_ context.Context, key, value string) (*models.SystemSetting, error) {
	s.key, s.value = key, value
	return s.setting, s.err
}

type stubTrail struct {
	entityType string
	limit      int
	entries    []models.BookingAuditLog
}

func (s *stubTrail) ListForEntity(_ context.Context, entityType string, _ uuid.UUID, limit int) ([]models.BookingAuditLog, error) {
	s.entityType, s.limit = entityType, limit
	return s.entries, nil
}

type stubSlots struct {
	from, to time.Time
	slots    []models.TimeSlot
	err      error
}

func (s *stubSlots) ListAvailable(_ context.Context, _ uuid.UUID, from, to time.Time) ([]models.TimeSlot, error) {
	s.from, s.to = from, to
	return s.slots, s.err
}
