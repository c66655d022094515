package cashbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"lmsledger/internal/db"
	"lmsledger/internal/money"
)

var (
	ErrCashboxNotFound  = errors.New("cashbox not found")
	ErrInsufficientCash = fmt.Errorf("insufficient cash in cashbox: %w", money.ErrInsufficientFunds)
)

const cashboxColumns = `id, branch_id, balance, currency, created_at, updated_at`

type repository struct {
	currency string
}

func NewRepository(currency string) Repository {
	return &repository{currency: currency}
}

func (r *repository) GetOrCreate(ctx context.Context, q db.Querier, branchID uuid.UUID) (*Cashbox, error) {
	cb := &Cashbox{}
	err := sqlx.GetContext(ctx, q, cb, `SELECT `+cashboxColumns+` FROM cashboxes WHERE branch_id = $1`, branchID)
	if err == nil {
		return cb, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	err = sqlx.GetContext(ctx, q, cb,
		`INSERT INTO cashboxes (id, branch_id, balance, currency)
		 VALUES ($1, $2, 0, $3)
		 ON CONFLICT (branch_id) DO NOTHING
		 RETURNING `+cashboxColumns,
		uuid.New(), branchID, r.currency,
	)
	if errors.Is(err, sql.ErrNoRows) {
		err = sqlx.GetContext(ctx, q, cb, `SELECT `+cashboxColumns+` FROM cashboxes WHERE branch_id = $1`, branchID)
	}
	if err != nil {
		return nil, err
	}
	return cb, nil
}

func (r *repository) GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*Cashbox, error) {
	cb := &Cashbox{}
	err := sqlx.GetContext(ctx, q, cb, `SELECT `+cashboxColumns+` FROM cashboxes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCashboxNotFound
	}
	if err != nil {
		return nil, err
	}
	return cb, nil
}

// ApplyDelta follows the same locked read-modify-write as wallets.
func (r *repository) ApplyDelta(ctx context.Context, q db.Querier, id uuid.UUID, delta money.Money) (*Cashbox, error) {
	cb := &Cashbox{}
	err := sqlx.GetContext(ctx, q, cb,
		`SELECT `+cashboxColumns+`
		 FROM cashboxes
		 WHERE id = $1
		 FOR UPDATE`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCashboxNotFound
	}
	if err != nil {
		return nil, err
	}

	newBalance := cb.Balance.Add(delta)
	if newBalance.IsNegative() {
		return nil, ErrInsufficientCash
	}

	now := time.Now().UTC()
	if _, err := q.ExecContext(ctx,
		`UPDATE cashboxes
		 SET balance = $1, updated_at = $2
		 WHERE id = $3`,
		newBalance, now, cb.ID,
	); err != nil {
		return nil, err
	}

	cb.Balance = newBalance
	cb.UpdatedAt = now
	return cb, nil
}
