package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HealthCheck pings one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	version  string
	checks   map[string]HealthCheck
	required map[string]bool
	timeout  time.Duration
	logger   *logrus.Logger
}

// NewHealthHandler creates a handler with no dependencies registered
func NewHealthHandler(version string, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		version:  version,
		checks:   make(map[string]HealthCheck),
		required: make(map[string]bool),
		timeout:  2 * time.Second,
		logger:   logger,
	}
}

// Register adds a dependency. A failing required dependency makes the service unready;
// an optional one only shows as degraded.
func (h *HealthHandler) Register(name string, required bool, check HealthCheck) {
	h.checks[name] = check
	h.required[name] = required
}

// Live always answers 200 while the process serves requests
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

// Ready pings every registered dependency
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	code := http.StatusOK
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.WithError(err).WithField("dependency", name).Warn("Health check failed")
			deps[name] = "unhealthy"
			if h.required[name] {
				status = "unhealthy"
				code = http.StatusServiceUnavailable
			} else if status == "healthy" {
				status = "degraded"
			}
			continue
		}
		deps[name] = "healthy"
	}

	c.JSON(code, gin.H{
		"status":       status,
		"version":      h.version,
		"dependencies": deps,
		"timestamp":    time.Now().Unix(),
	})
}
