package payment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"lmsledger/internal/db"
)

type Repository interface {
	// Create inserts p. It reports false without error when another payment
	// already holds p's idempotency key.
	Create(ctx context.Context, q db.Querier, p *Payment) (bool, error)
	GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*Payment, error)
	GetForUpdate(ctx context.Context, q db.Querier, id uuid.UUID) (*Payment, error)
	FindByIdempotencyKey(ctx context.Context, q db.Querier, key string, senderID uuid.UUID) (*Payment, error)
	FindByGatewayReference(ctx context.Context, q db.Querier, gatewayPaymentID string) (*Payment, error)
	Update(ctx context.Context, q db.Querier, p *Payment) error
	RecordStatusChange(ctx context.Context, q db.Querier, c *StatusChange) error
	ListStatusChanges(ctx context.Context, q db.Querier, paymentID uuid.UUID) ([]StatusChange, error)
	ListPendingOlderThan(ctx context.Context, q db.Querier, cutoff time.Time, limit int) ([]Payment, error)
	PendingStats(ctx context.Context, q db.Querier, now time.Time) (*PendingStats, error)
}
