package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"lmsledger/internal/logger"
)

// TxRunner runs fn inside a single database transaction. Returning an error
// from fn rolls everything back.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(q Querier) error) error
}

type Store struct {
	db          *sqlx.DB
	lockTimeout time.Duration
	maxAttempts int
	backoff     time.Duration
}

func NewStore(db *sqlx.DB, lockTimeout time.Duration) *Store {
	return &Store{
		db:          db,
		lockTimeout: lockTimeout,
		maxAttempts: 3,
		backoff:     50 * time.Millisecond,
	}
}

func (s *Store) DB() *sqlx.DB { return s.db }

// WithTx retries contention failures a bounded number of times and then
// surfaces ErrRetryable. Business errors from fn are returned untouched.
func (s *Store) WithTx(ctx context.Context, fn func(q Querier) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}

		logger.Warn("transaction contention, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("%w: %v", ErrRetryable, err)
}

func (s *Store) runOnce(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}
