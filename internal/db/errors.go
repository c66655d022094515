package db

import (
	"errors"

	"github.com/lib/pq"
)

// ErrRetryable marks infrastructure contention (lock wait timeout, deadlock,
// serialization failure). The operation never took effect and may be retried
// with the same idempotency key.
var ErrRetryable = errors.New("transient database contention, retry the operation")

const (
	codeUniqueViolation      = "23505"
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeQueryCanceled        = "57014"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique constraint failure,
// optionally restricted to one constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func IsRetryable(err error) bool {
	if errors.Is(err, ErrRetryable) {
		return true
	}
	switch pqCode(err) {
	case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected, codeQueryCanceled:
		return true
	}
	return false
}
