package payment

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"lmsledger/internal/ledger"
	"lmsledger/internal/money"
	"lmsledger/internal/wallet"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusRefunded  Status = "REFUNDED"
)

var allStatuses = []Status{StatusPending, StatusCompleted, StatusCancelled, StatusRefunded}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

type Method string

const (
	MethodWallet   Method = "WALLET"
	MethodCash     Method = "CASH"
	MethodExternal Method = "EXTERNAL"
)

type Reason string

const (
	ReasonTopup            Reason = "TOPUP"
	ReasonSessionFee       Reason = "STUDENT_SESSION_FEE"
	ReasonMonthlyFee       Reason = "STUDENT_MONTHLY_FEE"
	ReasonClassFee         Reason = "STUDENT_CLASS_FEE"
	ReasonTeacherPayout    Reason = "TEACHER_PAYOUT"
	ReasonInternalTransfer Reason = "INTERNAL_TRANSFER"
	ReasonBranchDeposit    Reason = "BRANCH_DEPOSIT"
	ReasonBranchWithdrawal Reason = "BRANCH_WITHDRAWAL"
	ReasonExpense          Reason = "EXPENSE"
)

func (r Reason) Valid() bool {
	_, ok := reasonTransactionTypes[r]
	return ok
}

// FeeBearing reports whether a platform fee is computed for the reason.
func (r Reason) FeeBearing() bool {
	switch r {
	case ReasonSessionFee, ReasonMonthlyFee, ReasonClassFee:
		return true
	}
	return false
}

var reasonTransactionTypes = map[Reason]ledger.TransactionType{
	ReasonTopup:            ledger.TypeTopup,
	ReasonSessionFee:       ledger.TypeStudentBill,
	ReasonMonthlyFee:       ledger.TypeStudentBill,
	ReasonClassFee:         ledger.TypeStudentBill,
	ReasonTeacherPayout:    ledger.TypeTeacherPayout,
	ReasonInternalTransfer: ledger.TypeInternalTransfer,
	ReasonBranchDeposit:    ledger.TypeBranchDeposit,
	ReasonBranchWithdrawal: ledger.TypeBranchWithdrawal,
	ReasonExpense:          ledger.TypeExpense,
}

// LedgerType maps a payment reason onto the ledger row type.
func (r Reason) LedgerType() ledger.TransactionType {
	if t, ok := reasonTransactionTypes[r]; ok {
		return t
	}
	return ledger.TypeInternalTransfer
}

type ReferenceType string

const (
	ReferenceTransaction     ReferenceType = "TRANSACTION"
	ReferenceCashTransaction ReferenceType = "CASH_TRANSACTION"
	ReferenceTeacherPayout   ReferenceType = "TEACHER_PAYOUT"
	ReferenceStudentCharge   ReferenceType = "STUDENT_CHARGE"
)

// Metadata is free-form JSON stored with a payment. Gateway identifiers live
// here rather than in ReferenceID because they are not UUIDs.
type Metadata map[string]interface{}

const (
	MetaGatewayType      = "gatewayType"
	MetaGatewayPaymentID = "gatewayPaymentId"
	MetaCheckoutURL      = "checkoutUrl"
	MetaGatewayStatus    = "gatewayStatus"
	MetaFailureReason    = "failureReason"
	MetaDescription      = "description"
	MetaRefundReason     = "refundReason"
)

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("payment metadata: unsupported scan type")
	}
	out := Metadata{}
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func (m Metadata) merge(other Metadata) Metadata {
	out := Metadata{}
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

type Payment struct {
	ID                 uuid.UUID        `db:"id" json:"id"`
	Amount             money.Money      `db:"amount" json:"amount"`
	Currency           string           `db:"currency" json:"currency"`
	SenderID           uuid.UUID        `db:"sender_id" json:"sender_id"`
	SenderType         wallet.OwnerType `db:"sender_type" json:"sender_type"`
	ReceiverID         uuid.UUID        `db:"receiver_id" json:"receiver_id"`
	ReceiverType       wallet.OwnerType `db:"receiver_type" json:"receiver_type"`
	Status             Status           `db:"status" json:"status"`
	Reason             Reason           `db:"reason" json:"reason"`
	Method             Method           `db:"payment_method" json:"payment_method"`
	ReferenceType      *ReferenceType   `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID        *uuid.UUID       `db:"reference_id" json:"reference_id,omitempty"`
	CorrelationID      *uuid.UUID       `db:"correlation_id" json:"correlation_id,omitempty"`
	IdempotencyKey     *string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	PaidAt             *time.Time       `db:"paid_at" json:"paid_at,omitempty"`
	FeeAmount          *money.Money     `db:"fee_amount" json:"fee_amount,omitempty"`
	NetAmount          *money.Money     `db:"net_amount" json:"net_amount,omitempty"`
	Metadata           Metadata         `db:"metadata" json:"metadata"`
	CreatedByProfileID uuid.UUID        `db:"created_by_profile_id" json:"created_by_profile_id"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

func (p *Payment) setReference(t ReferenceType, id uuid.UUID) {
	p.ReferenceType = &t
	p.ReferenceID = &id
}

func (p *Payment) correlation() uuid.UUID {
	if p.CorrelationID != nil {
		return *p.CorrelationID
	}
	return p.ID
}

// StatusChange is the immutable audit row written for every transition.
type StatusChange struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	PaymentID       uuid.UUID      `db:"payment_id" json:"payment_id"`
	OldStatus       Status         `db:"old_status" json:"old_status"`
	NewStatus       Status         `db:"new_status" json:"new_status"`
	TransitionType  TransitionKind `db:"transition_type" json:"transition_type"`
	ChangedByUserID uuid.UUID      `db:"changed_by_user_id" json:"changed_by_user_id"`
	Reason          *string        `db:"reason" json:"reason,omitempty"`
	Metadata        Metadata       `db:"metadata" json:"metadata"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// CreateRequest describes one money movement intent.
type CreateRequest struct {
	Amount         money.Money      `json:"amount" binding:"required"`
	SenderID       uuid.UUID        `json:"sender_id" binding:"required"`
	SenderType     wallet.OwnerType `json:"sender_type" binding:"required"`
	ReceiverID     uuid.UUID        `json:"receiver_id" binding:"required"`
	ReceiverType   wallet.OwnerType `json:"receiver_type" binding:"required"`
	Reason         Reason           `json:"reason" binding:"required"`
	Method         Method           `json:"payment_method" binding:"required"`
	ReferenceType  *ReferenceType   `json:"reference_type,omitempty"`
	ReferenceID    *uuid.UUID       `json:"reference_id,omitempty"`
	CorrelationID  *uuid.UUID       `json:"correlation_id,omitempty"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	// PaidByProfileID is recorded on cash rows; defaults to the sender.
	PaidByProfileID *uuid.UUID `json:"paid_by_profile_id,omitempty"`
	// Deferred keeps WALLET and CASH payments PENDING until CompletePayment.
	Deferred bool     `json:"deferred,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// PendingStats is the operational view the expiry sweeper exposes.
type PendingStats struct {
	Pending        int `db:"pending" json:"pending"`
	PendingOver1h  int `db:"pending_over_1h" json:"pending_over_1h"`
	PendingOver24h int `db:"pending_over_24h" json:"pending_over_24h"`
}
