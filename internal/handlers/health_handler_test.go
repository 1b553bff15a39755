package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func healthRouter(h *HealthHandler) *gin.Engine {
	router := newRouter(uuid.Nil)
	router.GET("/health", h.Ready)
	router.GET("/health/live", h.Live)
	return router
}

func healthyCheck(context.Context) error { return nil }
func failingCheck(context.Context) error { return errors.New("connection refused") }

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name     string
		postgres HealthCheck
		redis    HealthCheck
		code     int
		status   string
	}{
		{"all up", healthyCheck, healthyCheck, http.StatusOK, "healthy"},
		{"optional redis down", healthyCheck, failingCheck, http.StatusOK, "degraded"},
		{"database down", failingCheck, healthyCheck, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("1.2.3", quietLogger())
			h.Register("postgres", true, tt.postgres)
			h.Register("redis", false, tt.redis)

			w := doJSON(t, healthRouter(h), http.MethodGet, "/health", nil)
			assert.Equal(t, tt.code, w.Code)

			var body struct {
				Status       string            `json:"status"`
				Version      string            `json:"version"`
				Dependencies map[string]string `json:"dependencies"`
			}
			decode(t, w, &body)
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, "1.2.3", body.Version)
			assert.Len(t, body.Dependencies, 2)
		})
	}
}

func TestHealthHandler_Live(t *testing.T) {
	h := NewHealthHandler("1.2.3", quietLogger())
	h.Register("postgres", true, failingCheck)

	w := doJSON(t, healthRouter(h), http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
