package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"lmsledger/internal/db"
)

const paymentColumns = `id, amount, currency, sender_id, sender_type, receiver_id, receiver_type, status, reason,
	payment_method, reference_type, reference_id, correlation_id, idempotency_key, paid_at, fee_amount,
	net_amount, metadata, created_by_profile_id, created_at, updated_at`

const statusChangeColumns = `id, payment_id, old_status, new_status, transition_type, changed_by_user_id, reason, metadata, created_at`

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func (r *repository) Create(ctx context.Context, q db.Querier, p *Payment) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Metadata == nil {
		p.Metadata = Metadata{}
	}

	err := sqlx.GetContext(ctx, q, p,
		`INSERT INTO payments (id, amount, currency, sender_id, sender_type, receiver_id, receiver_type, status, reason,
			payment_method, reference_type, reference_id, correlation_id, idempotency_key, fee_amount, net_amount,
			metadata, created_by_profile_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 ON CONFLICT (idempotency_key) DO NOTHING
		 RETURNING `+paymentColumns,
		p.ID, p.Amount, p.Currency, p.SenderID, p.SenderType, p.ReceiverID, p.ReceiverType, p.Status, p.Reason,
		p.Method, p.ReferenceType, p.ReferenceID, p.CorrelationID, p.IdempotencyKey, p.FeeAmount, p.NetAmount,
		p.Metadata, p.CreatedByProfileID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) getOne(ctx context.Context, q db.Querier, query string, args ...interface{}) (*Payment, error) {
	p := &Payment{}
	err := sqlx.GetContext(ctx, q, p, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*Payment, error) {
	return r.getOne(ctx, q, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// GetForUpdate locks the payment row so concurrent transitions of the same
// payment serialize.
func (r *repository) GetForUpdate(ctx context.Context, q db.Querier, id uuid.UUID) (*Payment, error) {
	return r.getOne(ctx, q, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, q db.Querier, key string, senderID uuid.UUID) (*Payment, error) {
	return r.getOne(ctx, q,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE idempotency_key = $1 AND sender_id = $2
		 ORDER BY created_at
		 LIMIT 1`,
		key, senderID,
	)
}

func (r *repository) FindByGatewayReference(ctx context.Context, q db.Querier, gatewayPaymentID string) (*Payment, error) {
	return r.getOne(ctx, q,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE payment_method = 'EXTERNAL' AND metadata->>'gatewayPaymentId' = $1
		 LIMIT 1`,
		gatewayPaymentID,
	)
}

func (r *repository) Update(ctx context.Context, q db.Querier, p *Payment) error {
	p.UpdatedAt = time.Now().UTC()

	result, err := q.ExecContext(ctx,
		`UPDATE payments
		 SET status = $1, paid_at = $2, reference_type = $3, reference_id = $4,
		     fee_amount = $5, net_amount = $6, metadata = $7, updated_at = $8
		 WHERE id = $9`,
		p.Status, p.PaidAt, p.ReferenceType, p.ReferenceID, p.FeeAmount, p.NetAmount, p.Metadata, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *repository) RecordStatusChange(ctx context.Context, q db.Querier, c *StatusChange) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Metadata == nil {
		c.Metadata = Metadata{}
	}

	return sqlx.GetContext(ctx, q, c,
		`INSERT INTO payment_status_changes (id, payment_id, old_status, new_status, transition_type, changed_by_user_id, reason, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+statusChangeColumns,
		c.ID, c.PaymentID, c.OldStatus, c.NewStatus, c.TransitionType, c.ChangedByUserID, c.Reason, c.Metadata,
	)
}

func (r *repository) ListStatusChanges(ctx context.Context, q db.Querier, paymentID uuid.UUID) ([]StatusChange, error) {
	changes := []StatusChange{}
	err := sqlx.SelectContext(ctx, q, &changes,
		`SELECT `+statusChangeColumns+`
		 FROM payment_status_changes
		 WHERE payment_id = $1
		 ORDER BY created_at, id`,
		paymentID,
	)
	return changes, err
}

func (r *repository) ListPendingOlderThan(ctx context.Context, q db.Querier, cutoff time.Time, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 100
	}

	payments := []Payment{}
	err := sqlx.SelectContext(ctx, q, &payments,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE status = 'PENDING' AND created_at < $1
		 ORDER BY created_at
		 LIMIT $2`,
		cutoff, limit,
	)
	return payments, err
}

func (r *repository) PendingStats(ctx context.Context, q db.Querier, now time.Time) (*PendingStats, error) {
	stats := &PendingStats{}
	err := sqlx.GetContext(ctx, q, stats,
		`SELECT
			COUNT(*) AS pending,
			COUNT(*) FILTER (WHERE created_at < $1) AS pending_over_1h,
			COUNT(*) FILTER (WHERE created_at < $2) AS pending_over_24h
		 FROM payments
		 WHERE status = 'PENDING'`,
		now.Add(-time.Hour), now.Add(-24*time.Hour),
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
