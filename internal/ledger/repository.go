package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"lmsledger/internal/db"
)

var ErrNonPositiveAmount = errors.New("ledger amount must be positive")

const transactionColumns = `id, seq, wallet_id, from_wallet_id, to_wallet_id, amount, balance_after, type, correlation_id, payment_id, created_at`

type transactionRepository struct{}

func NewTransactionRepository() TransactionRepository {
	return &transactionRepository{}
}

func (r *transactionRepository) Append(ctx context.Context, q db.Querier, t *Transaction) error {
	if !t.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	return sqlx.GetContext(ctx, q, t,
		`INSERT INTO transactions (id, wallet_id, from_wallet_id, to_wallet_id, amount, balance_after, type, correlation_id, payment_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+transactionColumns,
		t.ID, t.WalletID, t.FromWalletID, t.ToWalletID, t.Amount, t.BalanceAfter, t.Type, t.CorrelationID, t.PaymentID,
	)
}

func (r *transactionRepository) Exists(ctx context.Context, q db.Querier, id uuid.UUID) (bool, error) {
	return db.Exists(ctx, q, `SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`, id)
}

func (r *transactionRepository) ListByPayment(ctx context.Context, q db.Querier, paymentID uuid.UUID) ([]Transaction, error) {
	txs := []Transaction{}
	err := sqlx.SelectContext(ctx, q, &txs,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE payment_id = $1
		 ORDER BY seq`,
		paymentID,
	)
	return txs, err
}

// ListByWallet returns the full history of a wallet in creation order.
func (r *transactionRepository) ListByWallet(ctx context.Context, q db.Querier, walletID uuid.UUID) ([]Transaction, error) {
	txs := []Transaction{}
	err := sqlx.SelectContext(ctx, q, &txs,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE wallet_id = $1
		 ORDER BY seq`,
		walletID,
	)
	return txs, err
}
