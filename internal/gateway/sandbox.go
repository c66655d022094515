package gateway

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
)

const TypeSandbox Type = "sandbox"

// Sandbox is an in-process gateway for development and tests. Checkout
// URLs point at returnURL and completion arrives through the regular webhook
// endpoint.
type Sandbox struct {
	returnURL string

	mu       sync.Mutex
	payments map[string]CreateRequest
	byKey    map[string]*CreateResult
	refunds  map[string]RefundRequest
}

func NewSandbox(returnURL string) *Sandbox {
	return &Sandbox{
		returnURL: returnURL,
		payments:  make(map[string]CreateRequest),
		byKey:     make(map[string]*CreateResult),
		refunds:   make(map[string]RefundRequest),
	}
}

func (s *Sandbox) CreatePayment(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrGatewayFailure)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.IdempotencyKey != "" {
		if prev, ok := s.byKey[req.IdempotencyKey]; ok {
			out := *prev
			return &out, nil
		}
	}

	id := "sbx_" + uuid.NewString()
	s.payments[id] = req

	target := req.ReturnURL
	if target == "" {
		target = s.returnURL
	}

	res := &CreateResult{
		CheckoutURL:      fmt.Sprintf("%s?ref=%s", target, url.QueryEscape(id)),
		GatewayPaymentID: id,
		ClientSecret:     uuid.NewString(),
		Status:           string(NoticeProcessing),
	}
	if req.IdempotencyKey != "" {
		s.byKey[req.IdempotencyKey] = res
	}
	out := *res
	return &out, nil
}

func (s *Sandbox) RefundPayment(ctx context.Context, req RefundRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[req.GatewayPaymentID]; !ok {
		return fmt.Errorf("%w: unknown gateway payment %s", ErrGatewayFailure, req.GatewayPaymentID)
	}
	if prev, done := s.refunds[req.GatewayPaymentID]; done {
		if req.IdempotencyKey != "" && prev.IdempotencyKey == req.IdempotencyKey {
			return nil
		}
		return fmt.Errorf("%w: %s already refunded", ErrGatewayFailure, req.GatewayPaymentID)
	}
	s.refunds[req.GatewayPaymentID] = req
	return nil
}

// Refunds reports how many distinct refunds the sandbox has accepted.
func (s *Sandbox) Refunds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refunds)
}
