package ledger

import (
	"context"

	"github.com/google/uuid"

	"lmsledger/internal/db"
)

type TransactionRepository interface {
	Append(ctx context.Context, q db.Querier, t *Transaction) error
	Exists(ctx context.Context, q db.Querier, id uuid.UUID) (bool, error)
	ListByPayment(ctx context.Context, q db.Querier, paymentID uuid.UUID) ([]Transaction, error)
	ListByWallet(ctx context.Context, q db.Querier, walletID uuid.UUID) ([]Transaction, error)
}

type CashTransactionRepository interface {
	Append(ctx context.Context, q db.Querier, c *CashTransaction) error
	GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*CashTransaction, error)
	Exists(ctx context.Context, q db.Querier, id uuid.UUID) (bool, error)
	ListByCashbox(ctx context.Context, q db.Querier, cashboxID uuid.UUID, limit, offset int) ([]CashTransaction, error)
}
