package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"lmsledger/internal/actor"
	"lmsledger/internal/db"
	"lmsledger/internal/gateway"
	"lmsledger/internal/logger"
	"lmsledger/internal/money"
	"lmsledger/internal/wallet"
)

// ExternalRequest starts a gateway-mediated payment. The receiver defaults to
// the sender (a wallet top-up) and the reason defaults to TOPUP.
type ExternalRequest struct {
	Amount         money.Money      `json:"amount" binding:"required"`
	SenderID       uuid.UUID        `json:"sender_id" binding:"required"`
	SenderType     wallet.OwnerType `json:"sender_type,omitempty"`
	ReceiverID     *uuid.UUID       `json:"receiver_id,omitempty"`
	ReceiverType   wallet.OwnerType `json:"receiver_type,omitempty"`
	Reason         Reason           `json:"reason,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	Description    string           `json:"description,omitempty"`
	GatewayType    gateway.Type     `json:"gateway_type" binding:"required"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
}

type ExternalResult struct {
	Payment          *Payment `json:"payment"`
	CheckoutURL      string   `json:"checkout_url"`
	GatewayPaymentID string   `json:"gateway_payment_id"`
}

func externalResult(p *Payment) *ExternalResult {
	return &ExternalResult{
		Payment:          p,
		CheckoutURL:      p.Metadata.String(MetaCheckoutURL),
		GatewayPaymentID: p.Metadata.String(MetaGatewayPaymentID),
	}
}

// InitiateExternalPayment records a PENDING payment and asks the gateway for
// a checkout reference. Gateway identifiers go to metadata. When the gateway
// call fails the payment is cancelled with the failure reason and the error
// is returned. The payment id is the gateway idempotency key, so a retried
// transaction gets the same checkout back.
func (s *service) InitiateExternalPayment(ctx context.Context, a actor.Actor, req ExternalRequest) (*ExternalResult, error) {
	gw, err := s.gateways.Get(req.GatewayType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if req.SenderType == "" {
		req.SenderType = wallet.OwnerUser
	}
	receiverID := req.SenderID
	if req.ReceiverID != nil {
		receiverID = *req.ReceiverID
	}
	if req.ReceiverType == "" {
		req.ReceiverType = req.SenderType
	}
	if req.Reason == "" {
		req.Reason = ReasonTopup
	}
	if req.Currency != "" && s.currency != "" && req.Currency != s.currency {
		return nil, fmt.Errorf("%w: currency %s is not supported", ErrInvalidRequest, req.Currency)
	}

	meta := Metadata{MetaGatewayType: string(req.GatewayType)}
	if req.Description != "" {
		meta[MetaDescription] = req.Description
	}

	p, err := s.CreatePayment(ctx, a, CreateRequest{
		Amount:         req.Amount,
		SenderID:       req.SenderID,
		SenderType:     req.SenderType,
		ReceiverID:     receiverID,
		ReceiverType:   req.ReceiverType,
		Reason:         req.Reason,
		Method:         MethodExternal,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       meta,
	})
	if err != nil {
		return nil, err
	}

	// Replayed request: the first call already reached the gateway.
	if p.Status != StatusPending || p.Metadata.String(MetaGatewayPaymentID) != "" {
		return externalResult(p), nil
	}

	// The gateway call is claimed under the payment row lock. Concurrent
	// calls with the same key wait here and then see the stored reference.
	var gwErr error
	out, err := s.mutate(ctx, a, p.ID, func(q db.Querier, locked *Payment) error {
		gwErr = nil
		if locked.Status != StatusPending || locked.Metadata.String(MetaGatewayPaymentID) != "" {
			return nil
		}

		res, err := gw.CreatePayment(ctx, gateway.CreateRequest{
			PaymentID:      locked.ID,
			Amount:         locked.Amount,
			Currency:       locked.Currency,
			Description:    req.Description,
			IdempotencyKey: locked.ID.String(),
			ReturnURL:      s.returnURL,
		})
		if err != nil {
			gwErr = err
			return s.cancelLocked(ctx, q, a, locked, "gateway error", Metadata{MetaFailureReason: err.Error()})
		}

		locked.Metadata = locked.Metadata.merge(Metadata{
			MetaGatewayPaymentID: res.GatewayPaymentID,
			MetaCheckoutURL:      res.CheckoutURL,
			MetaGatewayStatus:    res.Status,
		})
		return s.payments.Update(ctx, q, locked)
	})
	if err != nil {
		return nil, err
	}

	if gwErr != nil {
		logger.Error("gateway rejected payment", "payment_id", p.ID, "gateway", req.GatewayType, "error", gwErr)
		if errors.Is(gwErr, gateway.ErrGatewayFailure) {
			return nil, gwErr
		}
		return nil, fmt.Errorf("%w: %v", gateway.ErrGatewayFailure, gwErr)
	}

	return externalResult(out), nil
}

func (s *service) CompleteExternalPayment(ctx context.Context, a actor.Actor, id uuid.UUID, gatewayStatus string) (*Payment, error) {
	return s.mutate(ctx, a, id, func(q db.Querier, p *Payment) error {
		if err := requirePendingExternal(p); err != nil {
			return err
		}
		if gatewayStatus != "" {
			p.Metadata = p.Metadata.merge(Metadata{MetaGatewayStatus: gatewayStatus})
		}
		return s.completeLocked(ctx, q, a, p, p.SenderID)
	})
}

func (s *service) FailExternalPayment(ctx context.Context, a actor.Actor, id uuid.UUID, failureReason string) (*Payment, error) {
	return s.mutate(ctx, a, id, func(q db.Querier, p *Payment) error {
		return s.failExternalLocked(ctx, q, a, p, failureReason)
	})
}

func (s *service) failExternalLocked(ctx context.Context, q db.Querier, a actor.Actor, p *Payment, failureReason string) error {
	if err := requirePendingExternal(p); err != nil {
		return err
	}
	var meta Metadata
	if failureReason != "" {
		meta = Metadata{MetaFailureReason: failureReason}
	}
	return s.cancelLocked(ctx, q, a, p, failureReason, meta)
}

func requirePendingExternal(p *Payment) error {
	if p.Method != MethodExternal {
		return fmt.Errorf("%w: payment %s is not an external payment", ErrInvalidOperation, p.ID)
	}
	if p.Status != StatusPending {
		return fmt.Errorf("%w: payment %s is %s", ErrInvalidOperation, p.ID, p.Status)
	}
	return nil
}

// ProcessExternalPaymentCompletion applies a gateway notice. Unknown
// references return (nil, nil) and settled payments come back unchanged, so
// gateway retries are harmless.
func (s *service) ProcessExternalPaymentCompletion(ctx context.Context, notice gateway.Notice) (*Payment, error) {
	p, err := s.payments.FindByGatewayReference(ctx, s.reader, notice.GatewayPaymentID)
	if errors.Is(err, ErrPaymentNotFound) {
		logger.Warn("gateway notice for unknown payment", "gateway", notice.Gateway, "gateway_payment_id", notice.GatewayPaymentID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending {
		return p, nil
	}

	sys := actor.System()
	var out *Payment
	switch notice.Status {
	case gateway.NoticeSucceeded:
		out, err = s.CompleteExternalPayment(ctx, sys, p.ID, string(notice.Status))
	case gateway.NoticeFailed, gateway.NoticeCanceled:
		reason := notice.FailureReason
		if reason == "" {
			reason = string(notice.Status)
		}
		out, err = s.FailExternalPayment(ctx, sys, p.ID, reason)
	default:
		return p, nil
	}

	// Another delivery of the same notice won the race.
	if errors.Is(err, ErrInvalidOperation) {
		return s.payments.GetByID(ctx, s.reader, p.ID)
	}
	return out, err
}
