package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/carenest/therapy-booking/internal/config"
	"github.com/carenest/therapy-booking/pkg/metrics"
)

// WindowCounter counts hits on key inside a fixed window. It returns the count including
// this hit and the time left in the window.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// RedisCounter is a WindowCounter shared by every API instance
type RedisCounter struct {
	rdb redis.Scripter
}

// NewRedisCounter creates a counter on rdb
func NewRedisCounter(rdb redis.Scripter) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

// Hit implements WindowCounter
func (c *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := fixedWindowScript.Run(ctx, c.rdb, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit script result %T", res)
	}
	count, err := toInt64(values[0])
	if err != nil {
		return 0, 0, err
	}
	ttl, err := toInt64(values[1])
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		ttl = window.Milliseconds()
	}
	return count, time.Duration(ttl) * time.Millisecond, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected rate limit counter type %T", v)
	}
}

// RateLimitError is returned when a caller exceeded its window
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // the limited scope, e.g. "booking" or "refund"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// RateLimitService limits how often a caller may hit the mutating endpoints
type RateLimitService struct {
	counter  WindowCounter
	limit    int64
	window   time.Duration
	failOpen bool
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	now      func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(counter WindowCounter, cfg config.RateLimitConfig, m *metrics.Metrics, logger *logrus.Logger) *RateLimitService {
	return &RateLimitService{
		counter:  counter,
		limit:    int64(cfg.Requests),
		window:   time.Duration(cfg.WindowSeconds) * time.Second,
		failOpen: cfg.FailOpen,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Check counts one request by identifier in scope and returns a *RateLimitError once the
// limit is exceeded. Counter failures are let through when the service fails open.
func (s *RateLimitService) Check(ctx context.Context, scope, identifier string) error {
	key := "rl:" + scope + ":" + identifier

	count, ttl, err := s.counter.Hit(ctx, key, s.window)
	if err != nil {
		if s.failOpen {
			s.logger.WithError(err).WithField("scope", scope).Warn("Rate limiter unavailable, allowing request")
			return nil
		}
		return fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count > s.limit {
		s.metrics.Limited()
		retryAfter := s.now().Add(ttl)
		return &RateLimitError{
			Message:    fmt.Sprintf("Too many requests. Please try again after %s", retryAfter.Format("15:04:05")),
			RetryAfter: retryAfter,
			Type:       scope,
		}
	}
	return nil
}
