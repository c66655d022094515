package wallet

import (
	"context"

	"github.com/google/uuid"

	"lmsledger/internal/db"
	"lmsledger/internal/money"
)

type Repository interface {
	GetOrCreate(ctx context.Context, q db.Querier, ownerID uuid.UUID, ownerType OwnerType) (*Wallet, error)
	GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*Wallet, error)
	FindByOwner(ctx context.Context, q db.Querier, ownerID uuid.UUID, ownerType OwnerType) (*Wallet, error)
	ApplyDelta(ctx context.Context, q db.Querier, id uuid.UUID, delta money.Money) (*Wallet, error)
}
