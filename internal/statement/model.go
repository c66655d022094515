// Package statement builds read-only, signed-amount views of wallet and user
// activity. Nothing here writes; signs are derived per query from which side
// of a movement the queried party is on.
package statement

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"lmsledger/internal/money"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

var ErrInvalidFilter = errors.New("invalid statement filter")

// Filter narrows a statement. Zero values mean "no restriction". From is
// inclusive and To exclusive.
type Filter struct {
	Status string     `form:"status"`
	Reason string     `form:"reason"`
	From   *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit  int        `form:"limit"`
	Offset int        `form:"offset"`
}

func (f *Filter) normalize() error {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		return ErrInvalidFilter
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return ErrInvalidFilter
	}
	return nil
}

// WalletLine is one ledger row as seen from the statement's wallet.
type WalletLine struct {
	TransactionID    uuid.UUID   `db:"id" json:"transaction_id"`
	PaymentID        *uuid.UUID  `db:"payment_id" json:"payment_id,omitempty"`
	Type             string      `db:"type" json:"type"`
	Amount           money.Money `db:"amount" json:"amount"`
	SignedAmount     money.Money `db:"signed_amount" json:"signed_amount"`
	BalanceAfter     money.Money `db:"balance_after" json:"balance_after"`
	CorrelationID    uuid.UUID   `db:"correlation_id" json:"correlation_id"`
	PaymentStatus    *string     `db:"payment_status" json:"payment_status,omitempty"`
	PaymentReason    *string     `db:"payment_reason" json:"payment_reason,omitempty"`
	CounterpartyID   *uuid.UUID  `db:"counterparty_id" json:"counterparty_id,omitempty"`
	CounterpartyType *string     `db:"counterparty_type" json:"counterparty_type,omitempty"`
	CounterpartyName string      `db:"-" json:"counterparty_name,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}

// UserLine is one payment as seen by a user on either side of it.
type UserLine struct {
	PaymentID        uuid.UUID    `db:"id" json:"payment_id"`
	Status           string       `db:"status" json:"status"`
	Reason           string       `db:"reason" json:"reason"`
	Method           string       `db:"payment_method" json:"payment_method"`
	Amount           money.Money  `db:"amount" json:"amount"`
	SignedAmount     money.Money  `db:"signed_amount" json:"signed_amount"`
	FeeAmount        *money.Money `db:"fee_amount" json:"fee_amount,omitempty"`
	CounterpartyID   uuid.UUID    `db:"counterparty_id" json:"counterparty_id"`
	CounterpartyType string       `db:"counterparty_type" json:"counterparty_type"`
	CounterpartyName string       `db:"-" json:"counterparty_name,omitempty"`
	PaidAt           *time.Time   `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
}

type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
