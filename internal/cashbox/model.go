package cashbox

import (
	"time"

	"github.com/google/uuid"

	"lmsledger/internal/money"
)

// Cashbox holds the physical cash balance of one branch.
type Cashbox struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	BranchID  uuid.UUID   `db:"branch_id" json:"branch_id"`
	Balance   money.Money `db:"balance" json:"balance"`
	Currency  string      `db:"currency" json:"currency"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}
