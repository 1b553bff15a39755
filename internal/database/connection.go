package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/carenest/therapy-booking/internal/config"
)

// DB is the handle used by repositories that do not take part in booking transactions
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	PingContext(ctx context.Context) error
	Close() error
}

// PostgresDB implements DB and exposes the pool for transactional repositories
type PostgresDB struct {
	*sqlx.DB
}

const applicationName = "therapy-booking"

// NewConnection opens the pool and waits up to five seconds for the first ping
func NewConnection(cfg config.DatabaseConfig) (*PostgresDB, error) {
	dsn, err := withApplicationName(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxLifetime / 2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{DB: db}, nil
}

// withApplicationName tags URL-style DSNs so the sessions are identifiable in
// pg_stat_activity. Key/value DSNs are passed through untouched.
func withApplicationName(dsn string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("database URL is required")
	}

	u, err := url.Parse(dsn)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return dsn, nil
	}

	q := u.Query()
	if q.Get("application_name") == "" {
		q.Set("application_name", applicationName)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
