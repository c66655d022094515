// Package ledger stores the append-only audit trail of balance changes:
// Transaction rows for wallets and CashTransaction rows for branch cashboxes.
// Rows are never updated; corrections append new rows.
package ledger

import (
	"time"

	"github.com/google/uuid"

	"lmsledger/internal/money"
)

type TransactionType string

const (
	TypeTopup            TransactionType = "TOPUP"
	TypeStudentBill      TransactionType = "STUDENT_BILL"
	TypeTeacherPayout    TransactionType = "TEACHER_PAYOUT"
	TypeInternalTransfer TransactionType = "INTERNAL_TRANSFER"
	TypeBranchDeposit    TransactionType = "BRANCH_DEPOSIT"
	TypeBranchWithdrawal TransactionType = "BRANCH_WITHDRAWAL"
	TypeExpense          TransactionType = "EXPENSE"
	TypeRefund           TransactionType = "REFUND"
)

// Transaction is one wallet ledger row. WalletID is the anchor: the wallet
// whose statement the row belongs to and whose post-operation balance is
// stored in BalanceAfter. A movement between two wallets produces two rows,
// one anchored on each side, sharing CorrelationID.
type Transaction struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Seq           int64           `db:"seq" json:"-"`
	WalletID      uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	FromWalletID  *uuid.UUID      `db:"from_wallet_id" json:"from_wallet_id,omitempty"`
	ToWalletID    *uuid.UUID      `db:"to_wallet_id" json:"to_wallet_id,omitempty"`
	Amount        money.Money     `db:"amount" json:"amount"`
	BalanceAfter  money.Money     `db:"balance_after" json:"balance_after"`
	Type          TransactionType `db:"type" json:"type"`
	CorrelationID uuid.UUID       `db:"correlation_id" json:"correlation_id"`
	PaymentID     *uuid.UUID      `db:"payment_id" json:"payment_id,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// IsDebit reports whether the anchor wallet is the side that paid.
func (t Transaction) IsDebit() bool {
	return t.FromWalletID != nil && *t.FromWalletID == t.WalletID
}

// SignedAmount is negative for the debited wallet's view of the movement.
func (t Transaction) SignedAmount() money.Money {
	if t.IsDebit() {
		return t.Amount.Neg()
	}
	return t.Amount
}

type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

func (d Direction) Opposite() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

// CashTransaction is one cashbox ledger row.
type CashTransaction struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	Seq                 int64           `db:"seq" json:"-"`
	PaymentID           *uuid.UUID      `db:"payment_id" json:"payment_id,omitempty"`
	BranchID            uuid.UUID       `db:"branch_id" json:"branch_id"`
	CashboxID           uuid.UUID       `db:"cashbox_id" json:"cashbox_id"`
	Amount              money.Money     `db:"amount" json:"amount"`
	BalanceAfter        money.Money     `db:"balance_after" json:"balance_after"`
	Direction           Direction       `db:"direction" json:"direction"`
	Type                TransactionType `db:"type" json:"type"`
	ReceivedByProfileID uuid.UUID       `db:"received_by_profile_id" json:"received_by_profile_id"`
	PaidByProfileID     *uuid.UUID      `db:"paid_by_profile_id" json:"paid_by_profile_id,omitempty"`
	ReversalOf          *uuid.UUID      `db:"reversal_of" json:"reversal_of,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
}

// Delta is the change this row applied to the cashbox balance.
func (c CashTransaction) Delta() money.Money {
	if c.Direction == DirectionOut {
		return c.Amount.Neg()
	}
	return c.Amount
}
