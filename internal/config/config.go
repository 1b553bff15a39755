package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // slot times are resolved in BOOKING_TIMEZONE on hosts without zoneinfo

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Security  SecurityConfig
	Booking   BookingConfig
	Metrics   MetricsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig describes the tokens issued by the account service.
// DevTokenExpiry is only used by tooling that mints tokens locally.
type JWTConfig struct {
	Secret         string
	Issuer         string
	DevTokenExpiry time.Duration
}

// RateLimitConfig configures the request limiter. Backend "redis" shares a fixed window
// across instances; "memory" keeps token buckets in process.
type RateLimitConfig struct {
	Enabled       bool
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Requests      int
	WindowSeconds int
	FailOpen      bool // allow requests when Redis is unreachable
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig toggles request and audit logging
type SecurityConfig struct {
	EnableRequestLog bool
	EnableAuditLog   bool
}

// BookingConfig holds booking defaults used when system_settings rows are absent
type BookingConfig struct {
	Timezone                   string
	DefaultPlatformRatePercent float64
	RemittanceBankName         string
	RemittanceAccountNumber    string
	RemittanceAccountHolder    string
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// Load reads the configuration from the environment, after loading .env when present.
// Malformed numbers, booleans and durations are reported together rather than replaced
// by their defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var e envReader
	cfg := &Config{
		Server: ServerConfig{
			Port:        e.str("PORT", "8080"),
			Environment: e.str("ENVIRONMENT", "development"),
			LogLevel:    e.str("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                e.str("DATABASE_URL", ""),
			MaxConnections:     e.integer("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: e.integer("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    e.seconds("DATABASE_CONN_MAX_LIFETIME", 300),
		},
		JWT: JWTConfig{
			Secret:         e.str("JWT_SECRET", ""),
			Issuer:         e.str("JWT_ISSUER", "carenest-booking"),
			DevTokenExpiry: e.seconds("JWT_DEV_TOKEN_EXPIRY", 86400),
		},
		RateLimit: RateLimitConfig{
			Enabled:       e.boolean("RATE_LIMIT_ENABLED", true),
			Backend:       strings.ToLower(e.str("RATE_LIMIT_BACKEND", "redis")),
			RedisAddr:     e.str("REDIS_ADDR", "localhost:6379"),
			RedisPassword: e.str("REDIS_PASSWORD", ""),
			RedisDB:       e.integer("REDIS_DB", 0),
			Requests:      e.integer("RATE_LIMIT_REQUESTS", 30),
			WindowSeconds: e.integer("RATE_LIMIT_WINDOW_SECONDS", 60),
			FailOpen:      e.boolean("RATE_LIMIT_FAIL_OPEN", true),
		},
		CORS: CORSConfig{
			AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: e.list("CORS_ALLOWED_METHODS", "GET", "POST", "PUT", "DELETE", "OPTIONS"),
			AllowedHeaders: e.list("CORS_ALLOWED_HEADERS", "Content-Type", "Authorization"),
		},
		Security: SecurityConfig{
			EnableRequestLog: e.boolean("ENABLE_REQUEST_LOGGING", true),
			EnableAuditLog:   e.boolean("ENABLE_AUDIT_LOGGING", true),
		},
		Booking: BookingConfig{
			Timezone:                   e.str("BOOKING_TIMEZONE", "Asia/Seoul"),
			DefaultPlatformRatePercent: e.number("PLATFORM_SETTLEMENT_RATE", 5),
			RemittanceBankName:         e.str("REMITTANCE_BANK_NAME", ""),
			RemittanceAccountNumber:    e.str("REMITTANCE_ACCOUNT_NUMBER", ""),
			RemittanceAccountHolder:    e.str("REMITTANCE_ACCOUNT_HOLDER", ""),
		},
		Metrics: MetricsConfig{
			Enabled:   e.boolean("METRICS_ENABLED", true),
			Namespace: e.str("METRICS_NAMESPACE", "therapy_booking"),
		},
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot default
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Booking.DefaultPlatformRatePercent < 0 || c.Booking.DefaultPlatformRatePercent > 100 {
		return fmt.Errorf("PLATFORM_SETTLEMENT_RATE must be between 0 and 100, got %v", c.Booking.DefaultPlatformRatePercent)
	}

	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", c.Booking.Timezone, err)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 || c.RateLimit.WindowSeconds <= 0 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW_SECONDS must be positive")
		}
		if c.RateLimit.Backend != "redis" && c.RateLimit.Backend != "memory" {
			return fmt.Errorf("RATE_LIMIT_BACKEND must be redis or memory, got %q", c.RateLimit.Backend)
		}
	}

	return nil
}

// Location returns the time zone slots are published in
func (c *BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// envReader reads typed variables and remembers every value it could not parse
type envReader struct {
	errs []error
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, raw))
		return def
	}
	return v
}

func (e *envReader) number(key string, def float64) float64 {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", key, raw))
		return def
	}
	return v
}

func (e *envReader) boolean(key string, def bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, raw))
		return def
	}
	return v
}

func (e *envReader) seconds(key string, def int) time.Duration {
	return time.Duration(e.integer(key, def)) * time.Second
}

// list splits a comma separated value; blanks are dropped and an all-blank value means def
func (e *envReader) list(key string, def ...string) []string {
	var out []string
	for _, part := range strings.Split(e.str(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
