package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/carenest/therapy-booking/internal/services"
	"github.com/carenest/therapy-booking/internal/utils"
)

// RateLimiter decides whether one more request in scope is allowed for identifier
type RateLimiter interface {
	Check(ctx context.Context, scope, identifier string) error
}

// RateLimit limits requests per authenticated user, or per client IP when no user
// context is present.
func RateLimit(limiter RateLimiter, scope string, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := utils.GetRealIP(c)
		if userCtx, ok := GetUserContext(c); ok {
			identifier = userCtx.UserID.String()
		}

		err := limiter.Check(c.Request.Context(), scope, identifier)
		if err == nil {
			c.Next()
			return
		}

		var limited *services.RateLimitError
		if errors.As(err, &limited) {
			retry := int(time.Until(limited.RetryAfter).Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			logger.WithFields(logrus.Fields{
				"scope":      scope,
				"identifier": identifier,
				"path":       c.Request.URL.Path,
			}).Warn("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": limited.Message,
				"code":    "RATE_LIMIT_EXCEEDED",
			})
			return
		}

		logger.WithError(err).WithField("scope", scope).Error("Rate limiter failed")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error":   "unavailable",
			"message": "Service temporarily unavailable. Please try again.",
			"code":    "RATE_LIMIT_UNAVAILABLE",
		})
	}
}
