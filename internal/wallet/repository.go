package wallet

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
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientBalance = fmt.Errorf("insufficient balance: %w", money.ErrInsufficientFunds)
)

const walletColumns = `id, owner_id, owner_type, balance, currency, created_at, updated_at`

type repository struct {
	currency string
}

func NewRepository(currency string) Repository {
	return &repository{currency: currency}
}

func (r *repository) GetOrCreate(ctx context.Context, q db.Querier, ownerID uuid.UUID, ownerType OwnerType) (*Wallet, error) {
	w, err := r.FindByOwner(ctx, q, ownerID, ownerType)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	w = &Wallet{}
	err = sqlx.GetContext(ctx, q, w,
		`INSERT INTO wallets (id, owner_id, owner_type, balance, currency)
		 VALUES ($1, $2, $3, 0, $4)
		 ON CONFLICT (owner_id, owner_type) DO NOTHING
		 RETURNING `+walletColumns,
		uuid.New(), ownerID, ownerType, r.currency,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// lost the race to a concurrent creator
		return r.FindByOwner(ctx, q, ownerID, ownerType)
	}
	if err != nil {
		return nil, err
	}

	return w, nil
}

func (r *repository) GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*Wallet, error) {
	w := &Wallet{}
	err := sqlx.GetContext(ctx, q, w, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repository) FindByOwner(ctx context.Context, q db.Querier, ownerID uuid.UUID, ownerType OwnerType) (*Wallet, error) {
	w := &Wallet{}
	err := sqlx.GetContext(ctx, q, w,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 AND owner_type = $2`,
		ownerID, ownerType,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ApplyDelta is the only write path for a wallet balance. It must run inside
// a transaction: the row stays locked until that transaction ends, so the
// returned balance can be snapshotted into the ledger atomically. The
// non-negative check is repeated here even when callers pre-checked.
func (r *repository) ApplyDelta(ctx context.Context, q db.Querier, id uuid.UUID, delta money.Money) (*Wallet, error) {
	w := &Wallet{}
	err := sqlx.GetContext(ctx, q, w,
		`SELECT `+walletColumns+`
		 FROM wallets
		 WHERE id = $1
		 FOR UPDATE`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}

	newBalance := w.Balance.Add(delta)
	if newBalance.IsNegative() {
		return nil, ErrInsufficientBalance
	}

	now := time.Now().UTC()
	_, err = q.ExecContext(ctx,
		`UPDATE wallets
		 SET balance = $1, updated_at = $2
		 WHERE id = $3`,
		newBalance, now, w.ID,
	)
	if err != nil {
		return nil, err
	}

	w.Balance = newBalance
	w.UpdatedAt = now
	return w, nil
}
