package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"lmsledger/internal/db"
)

var (
	ErrCashTransactionNotFound = errors.New("cash transaction not found")
	ErrAlreadyReversed         = errors.New("cash transaction already reversed")
)

const cashColumns = `id, seq, payment_id, branch_id, cashbox_id, amount, balance_after, direction, type, received_by_profile_id, paid_by_profile_id, reversal_of, created_at`

type cashRepository struct{}

func NewCashTransactionRepository() CashTransactionRepository {
	return &cashRepository{}
}

func (r *cashRepository) Append(ctx context.Context, q db.Querier, c *CashTransaction) error {
	if !c.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	err := sqlx.GetContext(ctx, q, c,
		`INSERT INTO cash_transactions (id, payment_id, branch_id, cashbox_id, amount, balance_after, direction, type, received_by_profile_id, paid_by_profile_id, reversal_of)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+cashColumns,
		c.ID, c.PaymentID, c.BranchID, c.CashboxID, c.Amount, c.BalanceAfter, c.Direction, c.Type,
		c.ReceivedByProfileID, c.PaidByProfileID, c.ReversalOf,
	)
	if db.IsUniqueViolation(err, "cash_transactions_reversal_of_key") {
		return ErrAlreadyReversed
	}
	return err
}

func (r *cashRepository) GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*CashTransaction, error) {
	c := &CashTransaction{}
	err := sqlx.GetContext(ctx, q, c, `SELECT `+cashColumns+` FROM cash_transactions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCashTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *cashRepository) Exists(ctx context.Context, q db.Querier, id uuid.UUID) (bool, error) {
	return db.Exists(ctx, q, `SELECT EXISTS(SELECT 1 FROM cash_transactions WHERE id = $1)`, id)
}

func (r *cashRepository) ListByCashbox(ctx context.Context, q db.Querier, cashboxID uuid.UUID, limit, offset int) ([]CashTransaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows := []CashTransaction{}
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT `+cashColumns+`
		 FROM cash_transactions
		 WHERE cashbox_id = $1
		 ORDER BY seq DESC
		 LIMIT $2 OFFSET $3`,
		cashboxID, limit, offset,
	)
	return rows, err
}
