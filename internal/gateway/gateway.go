// Package gateway is the boundary to external payment providers. The wire
// protocol of each provider stays behind the Gateway interface; the ledger
// only sees checkout references and completion notices.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"lmsledger/internal/money"
)

var (
	ErrGatewayFailure = errors.New("payment gateway failure")
	ErrUnknownGateway = errors.New("unknown payment gateway")
)

type Type string

type CreateRequest struct {
	PaymentID      uuid.UUID
	Amount         money.Money
	Currency       string
	Description    string
	IdempotencyKey string
	ReturnURL      string
}

type CreateResult struct {
	CheckoutURL      string `json:"checkout_url"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	ClientSecret     string `json:"client_secret,omitempty"`
	Status           string `json:"status"`
}

// RefundRequest carries an idempotency key; adapters must treat a repeated
// key as the same refund.
type RefundRequest struct {
	GatewayPaymentID string
	Amount           money.Money
	Reason           string
	IdempotencyKey   string
}

type Gateway interface {
	CreatePayment(ctx context.Context, req CreateRequest) (*CreateResult, error)
	RefundPayment(ctx context.Context, req RefundRequest) error
}

type NoticeStatus string

const (
	NoticeSucceeded  NoticeStatus = "succeeded"
	NoticeFailed     NoticeStatus = "failed"
	NoticeCanceled   NoticeStatus = "canceled"
	NoticeProcessing NoticeStatus = "processing"
)

// Notice is a normalized webhook or poll result.
type Notice struct {
	Gateway          Type                   `json:"gateway"`
	GatewayPaymentID string                 `json:"gateway_payment_id" binding:"required"`
	Status           NoticeStatus           `json:"status" binding:"required"`
	FailureReason    string                 `json:"failure_reason,omitempty"`
	Data             map[string]interface{} `json:"data,omitempty"`
}

type Registry struct {
	mu       sync.RWMutex
	gateways map[Type]Gateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[Type]Gateway)}
}

func (r *Registry) Register(t Type, g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[t] = g
}

func (r *Registry) Get(t Type) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, t)
	}
	return g, nil
}
