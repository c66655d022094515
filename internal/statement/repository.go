package statement

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	WalletLines(ctx context.Context, walletID uuid.UUID, f Filter) ([]WalletLine, int, error)
	UserLines(ctx context.Context, userID uuid.UUID, f Filter) ([]UserLine, int, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// conditions accumulates AND-ed predicates with positional placeholders.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(format string, arg interface{}) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(format, len(c.args)))
}

func (c *conditions) where() string {
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func (c *conditions) page(f Filter) (string, []interface{}) {
	args := append(append([]interface{}{}, c.args...), f.Limit, f.Offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(c.args)+1, len(c.args)+2), args
}

func (c *conditions) filter(f Filter, statusCol, reasonCol, timeCol string) {
	if f.Status != "" {
		c.add(statusCol+" = $%d", f.Status)
	}
	if f.Reason != "" {
		c.add(reasonCol+" = $%d", f.Reason)
	}
	if f.From != nil {
		c.add(timeCol+" >= $%d", *f.From)
	}
	if f.To != nil {
		c.add(timeCol+" < $%d", *f.To)
	}
}

const walletFrom = `
	FROM transactions t
	LEFT JOIN payments p ON p.id = t.payment_id
	LEFT JOIN wallets cw ON cw.id = CASE
		WHEN t.from_wallet_id = t.wallet_id THEN t.to_wallet_id
		ELSE t.from_wallet_id
	END`

func (r *repository) WalletLines(ctx context.Context, walletID uuid.UUID, f Filter) ([]WalletLine, int, error) {
	var c conditions
	c.add("t.wallet_id = $%d", walletID)
	c.filter(f, "p.status", "p.reason", "t.created_at")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+walletFrom+c.where(), c.args...); err != nil {
		return nil, 0, fmt.Errorf("count wallet statement: %w", err)
	}

	limit, args := c.page(f)
	query := `
		SELECT t.id, t.payment_id, t.type, t.amount,
			CASE WHEN t.from_wallet_id = t.wallet_id THEN -t.amount ELSE t.amount END AS signed_amount,
			t.balance_after, t.correlation_id,
			p.status AS payment_status, p.reason AS payment_reason,
			cw.owner_id AS counterparty_id, cw.owner_type AS counterparty_type,
			t.created_at` + walletFrom + c.where() + `
		ORDER BY t.seq DESC` + limit

	lines := []WalletLine{}
	if err := r.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, 0, fmt.Errorf("select wallet statement: %w", err)
	}
	return lines, total, nil
}

func (r *repository) UserLines(ctx context.Context, userID uuid.UUID, f Filter) ([]UserLine, int, error) {
	var c conditions
	c.add("(p.sender_id = $%[1]d OR p.receiver_id = $%[1]d)", userID)
	c.filter(f, "p.status", "p.reason", "p.created_at")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM payments p`+c.where(), c.args...); err != nil {
		return nil, 0, fmt.Errorf("count user statement: %w", err)
	}

	limit, args := c.page(f)
	query := `
		SELECT p.id, p.status, p.reason, p.payment_method, p.amount,
			CASE WHEN p.sender_id = $1 AND p.receiver_id <> $1 THEN -p.amount ELSE p.amount END AS signed_amount,
			p.fee_amount,
			CASE WHEN p.sender_id = $1 THEN p.receiver_id ELSE p.sender_id END AS counterparty_id,
			CASE WHEN p.sender_id = $1 THEN p.receiver_type ELSE p.sender_type END AS counterparty_type,
			p.paid_at, p.created_at
		FROM payments p` + c.where() + `
		ORDER BY p.created_at DESC, p.id` + limit

	lines := []UserLine{}
	if err := r.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, 0, fmt.Errorf("select user statement: %w", err)
	}
	return lines, total, nil
}
