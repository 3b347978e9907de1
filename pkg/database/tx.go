package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// TxFunc is the body of a unit of work. Every statement must go through exec.
type TxFunc func(ctx context.Context, exec sqlx.ExtContext) error

// TxRunner executes units of work inside SERIALIZABLE transactions and retries
// them when Postgres aborts one because of a concurrent writer.
type TxRunner struct {
	db         *sqlx.DB
	maxRetries uint64
	baseDelay  time.Duration
	logger     *zap.Logger
}

// NewTxRunner builds a runner. A non-positive delay defaults to 10ms.
func NewTxRunner(db *sqlx.DB, maxRetries int, baseDelay time.Duration, logger *zap.Logger) *TxRunner {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 10 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TxRunner{db: db, maxRetries: uint64(maxRetries), baseDelay: baseDelay, logger: logger}
}

// Run executes fn in a transaction, committing on success and rolling back on error.
func (r *TxRunner) Run(ctx context.Context, fn TxFunc) error {
	backoff := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.baseDelay))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.runOnce(ctx, fn)
		if err != nil && IsSerializationFailure(err) {
			r.logger.Debug("transaction aborted by concurrent writer, retrying", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
}

func (r *TxRunner) runOnce(ctx context.Context, fn TxFunc) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsSerializationFailure reports whether err carries a retryable SQLSTATE from either driver.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
	}
	return false
}
