package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// psql builds PostgreSQL statements with $n placeholders
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type Queryer = sqlx.ExtContext

// TxManager runs booking mutations inside a single database transaction
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager creates a new TxManager
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// WithTx runs fn in a READ COMMITTED transaction. Any error or panic from fn rolls the
// transaction back. Serialization failures and deadlocks come back as ErrConcurrencyConflict.
func (m *TxManager) WithTx(ctx context.Context, fn func(q Queryer) error) (err error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return translateTxError(err)
	}

	if err = tx.Commit(); err != nil {
		return translateTxError(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// ErrConcurrencyConflict marks a transaction PostgreSQL aborted to keep concurrent writers apart
var ErrConcurrencyConflict = errors.New("transaction aborted by a concurrent update")

// ErrUniqueViolation wraps unique constraint failures with the constraint name
var ErrUniqueViolation = errors.New("unique constraint violation")

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

func translateTxError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected:
			return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
		}
	}
	return err
}

// uniqueConstraint returns the violated constraint name when err is a unique violation
func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// ErrNotFound is returned by repositories when a row does not exist
var ErrNotFound = errors.New("record not found")

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// use returns q when a transaction is in progress, otherwise the pool
func use(q Queryer, db *sqlx.DB) Queryer {
	if q != nil {
		return q
	}
	return db
}
