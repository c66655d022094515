package cashbox

import (
	"context"

	"github.com/google/uuid"

	"lmsledger/internal/db"
	"lmsledger/internal/money"
)

type Repository interface {
	GetOrCreate(ctx context.Context, q db.Querier, branchID uuid.UUID) (*Cashbox, error)
	GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*Cashbox, error)
	ApplyDelta(ctx context.Context, q db.Querier, id uuid.UUID, delta money.Money) (*Cashbox, error)
}
