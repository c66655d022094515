package payment

import "errors"

var (
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrInvalidAmount          = errors.New("invalid amount: must be greater than zero")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrInvalidReference       = errors.New("invalid reference: referenced ledger row does not exist")
	ErrInvalidOperation       = errors.New("invalid operation for payment in its current state")
	ErrInvalidRequest         = errors.New("invalid payment request")
	ErrUnsupportedMethod      = errors.New("unsupported payment method")
	ErrForbidden              = errors.New("operation requires elevated authority")
	ErrIdempotencyKeyConflict = errors.New("idempotency key already used by another sender")
)
