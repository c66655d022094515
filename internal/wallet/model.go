package wallet

import (
	"time"

	"github.com/google/uuid"

	"lmsledger/internal/money"
)

// OwnerType says what kind of party a wallet (or a payment side) belongs to.
type OwnerType string

const (
	OwnerUser   OwnerType = "USER"
	OwnerBranch OwnerType = "BRANCH"
	OwnerCenter OwnerType = "CENTER"
	OwnerSystem OwnerType = "SYSTEM"
)

func (t OwnerType) Valid() bool {
	switch t {
	case OwnerUser, OwnerBranch, OwnerCenter, OwnerSystem:
		return true
	}
	return false
}

// Wallet is the digital balance of one (owner, owner type) pair. It is
// created lazily and never deleted; the balance only changes through
// Repository.ApplyDelta.
type Wallet struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	OwnerID   uuid.UUID   `db:"owner_id" json:"owner_id"`
	OwnerType OwnerType   `db:"owner_type" json:"owner_type"`
	Balance   money.Money `db:"balance" json:"balance"`
	Currency  string      `db:"currency" json:"currency"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}
