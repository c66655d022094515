package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lmsledger/internal/actor"
	"lmsledger/internal/cashbox"
	"lmsledger/internal/db"
	"lmsledger/internal/events"
	"lmsledger/internal/gateway"
	"lmsledger/internal/ledger"
	"lmsledger/internal/logger"
	"lmsledger/internal/metrics"
	"lmsledger/internal/money"
	"lmsledger/internal/wallet"
)

// Authorizer decides whether an actor may run elevated (OVERRIDE) transitions.
type Authorizer interface {
	CanOverride(ctx context.Context, a actor.Actor) bool
}

type Service interface {
	CreatePayment(ctx context.Context, a actor.Actor, req CreateRequest) (*Payment, error)
	CreateAndExecutePayment(ctx context.Context, a actor.Actor, req CreateRequest) (*Payment, error)
	CompletePayment(ctx context.Context, a actor.Actor, id uuid.UUID, paidBy *uuid.UUID) (*Payment, error)
	RefundPayment(ctx context.Context, a actor.Actor, id uuid.UUID, note string) (*Payment, error)
	CancelPayment(ctx context.Context, a actor.Actor, id uuid.UUID, note string) (*Payment, error)
	ChangeStatus(ctx context.Context, a actor.Actor, id uuid.UUID, to Status, note string) (*Payment, error)

	InitiateExternalPayment(ctx context.Context, a actor.Actor, req ExternalRequest) (*ExternalResult, error)
	CompleteExternalPayment(ctx context.Context, a actor.Actor, id uuid.UUID, gatewayStatus string) (*Payment, error)
	FailExternalPayment(ctx context.Context, a actor.Actor, id uuid.UUID, failureReason string) (*Payment, error)
	ProcessExternalPaymentCompletion(ctx context.Context, notice gateway.Notice) (*Payment, error)

	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	StatusHistory(ctx context.Context, id uuid.UUID) ([]StatusChange, error)
	PendingStats(ctx context.Context) (*PendingStats, error)
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]Payment, error)
}

// Dependencies wires the orchestrator. Reader serves lookups that run outside
// a transaction.
type Dependencies struct {
	Tx               db.TxRunner
	Reader           db.Querier
	Payments         Repository
	Wallets          wallet.Repository
	Cashboxes        cashbox.Repository
	Transactions     ledger.TransactionRepository
	CashTransactions ledger.CashTransactionRepository
	Fees             FeeProvider
	Authorizer       Authorizer
	Gateways         *gateway.Registry
	Events           events.Publisher
	Currency         string
	ReturnURL        string
}

type service struct {
	tx               db.TxRunner
	reader           db.Querier
	payments         Repository
	wallets          wallet.Repository
	cashboxes        cashbox.Repository
	transactions     ledger.TransactionRepository
	cashTransactions ledger.CashTransactionRepository
	fees             FeeProvider
	authz            Authorizer
	gateways         *gateway.Registry
	events           events.Publisher
	currency         string
	returnURL        string
	now              func() time.Time
}

func NewService(deps Dependencies) Service {
	s := &service{
		tx:               deps.Tx,
		reader:           deps.Reader,
		payments:         deps.Payments,
		wallets:          deps.Wallets,
		cashboxes:        deps.Cashboxes,
		transactions:     deps.Transactions,
		cashTransactions: deps.CashTransactions,
		fees:             deps.Fees,
		authz:            deps.Authorizer,
		gateways:         deps.Gateways,
		events:           deps.Events,
		currency:         deps.Currency,
		returnURL:        deps.ReturnURL,
		now:              func() time.Time { return time.Now().UTC() },
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	if s.gateways == nil {
		s.gateways = gateway.NewRegistry()
	}
	return s
}

func (s *service) CreatePayment(ctx context.Context, a actor.Actor, req CreateRequest) (*Payment, error) {
	if req.IdempotencyKey != "" {
		existing, err := s.payments.FindByIdempotencyKey(ctx, s.reader, req.IdempotencyKey, req.SenderID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrPaymentNotFound) {
			return nil, err
		}
	}

	if err := validateCreate(req); err != nil {
		return nil, err
	}

	if req.Method == MethodWallet {
		if err := s.precheckBalance(ctx, req); err != nil {
			metrics.RecordInsufficientFunds(string(req.Method))
			return nil, err
		}
	}

	p := &Payment{
		ID:                 uuid.New(),
		Amount:             req.Amount,
		Currency:           s.currency,
		SenderID:           req.SenderID,
		SenderType:         req.SenderType,
		ReceiverID:         req.ReceiverID,
		ReceiverType:       req.ReceiverType,
		Status:             StatusPending,
		Reason:             req.Reason,
		Method:             req.Method,
		ReferenceType:      req.ReferenceType,
		ReferenceID:        req.ReferenceID,
		CorrelationID:      req.CorrelationID,
		Metadata:           Metadata{}.merge(req.Metadata),
		CreatedByProfileID: a.ProfileID,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		p.IdempotencyKey = &key
	}

	if req.Reason.FeeBearing() && s.fees != nil {
		pct, err := s.fees.FeesPercentage(ctx)
		if err != nil {
			return nil, err
		}
		if err := validateFeePercentage(pct); err != nil {
			return nil, err
		}
		fee, net := splitFee(req.Amount, pct)
		p.FeeAmount = &fee
		p.NetAmount = &net
	}

	execute := req.Method != MethodExternal && !req.Deferred
	paidBy := req.SenderID
	if req.PaidByProfileID != nil {
		paidBy = *req.PaidByProfileID
	}

	var created bool
	var out *Payment
	err := s.tx.WithTx(ctx, func(q db.Querier) error {
		row := *p
		ok, err := s.payments.Create(ctx, q, &row)
		if err != nil {
			return err
		}
		created = ok
		if !ok {
			return nil
		}
		if execute {
			if err := s.completeLocked(ctx, q, a, &row, paidBy); err != nil {
				return err
			}
		}
		out = &row
		return nil
	})
	if err != nil {
		s.observeFailure(req.Method, err)
		return nil, err
	}

	if !created {
		existing, err := s.payments.FindByIdempotencyKey(ctx, s.reader, req.IdempotencyKey, req.SenderID)
		if errors.Is(err, ErrPaymentNotFound) {
			return nil, ErrIdempotencyKeyConflict
		}
		return existing, err
	}

	metrics.RecordPayment("created", string(out.Method))
	s.publish(ctx, events.PaymentCreated, a, out)
	if out.Status == StatusCompleted {
		metrics.RecordPayment("completed", string(out.Method))
		metrics.RecordTransition(string(StatusCompleted), string(TransitionStandard))
		s.publish(ctx, events.PaymentCompleted, a, out)
	}

	logger.Info("payment created",
		"payment_id", out.ID,
		"method", out.Method,
		"reason", out.Reason,
		"status", out.Status,
		"amount", out.Amount.String(),
	)
	return out, nil
}

func (s *service) CreateAndExecutePayment(ctx context.Context, a actor.Actor, req CreateRequest) (*Payment, error) {
	if req.Method == MethodExternal {
		return nil, fmt.Errorf("%w: external payments are initiated through a gateway", ErrUnsupportedMethod)
	}
	req.Deferred = false
	return s.CreatePayment(ctx, a, req)
}

func validateCreate(req CreateRequest) error {
	if !req.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !req.SenderType.Valid() || !req.ReceiverType.Valid() {
		return fmt.Errorf("%w: unknown party type", ErrInvalidRequest)
	}
	if !req.Reason.Valid() {
		return fmt.Errorf("%w: unknown reason %q", ErrInvalidRequest, req.Reason)
	}
	if req.SenderID == uuid.Nil || req.ReceiverID == uuid.Nil {
		return fmt.Errorf("%w: sender and receiver are required", ErrInvalidRequest)
	}
	if (req.ReferenceType == nil) != (req.ReferenceID == nil) {
		return fmt.Errorf("%w: reference type and id go together", ErrInvalidRequest)
	}

	switch req.Method {
	case MethodWallet:
		if req.SenderID == req.ReceiverID && req.SenderType == req.ReceiverType {
			return fmt.Errorf("%w: sender and receiver are the same wallet", ErrInvalidRequest)
		}
	case MethodCash:
		if req.SenderType != wallet.OwnerBranch && req.ReceiverType != wallet.OwnerBranch {
			return fmt.Errorf("%w: cash payments need a branch on one side", ErrInvalidRequest)
		}
	case MethodExternal:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}
	return nil
}

// precheckBalance is advisory; ApplyDelta re-validates under the row lock.
func (s *service) precheckBalance(ctx context.Context, req CreateRequest) error {
	balance := money.Zero
	w, err := s.wallets.FindByOwner(ctx, s.reader, req.SenderID, req.SenderType)
	switch {
	case err == nil:
		balance = w.Balance
	case errors.Is(err, wallet.ErrWalletNotFound):
	default:
		return err
	}

	if balance.LessThan(req.Amount) {
		return fmt.Errorf("%w: balance %s, need %s", wallet.ErrInsufficientBalance, balance, req.Amount)
	}
	return nil
}

func (s *service) CompletePayment(ctx context.Context, a actor.Actor, id uuid.UUID, paidBy *uuid.UUID) (*Payment, error) {
	return s.mutate(ctx, a, id, func(q db.Querier, p *Payment) error {
		by := p.SenderID
		if paidBy != nil {
			by = *paidBy
		}
		return s.completeLocked(ctx, q, a, p, by)
	})
}

func (s *service) RefundPayment(ctx context.Context, a actor.Actor, id uuid.UUID, note string) (*Payment, error) {
	return s.mutate(ctx, a, id, func(q db.Querier, p *Payment) error {
		return s.refundLocked(ctx, q, a, p, note)
	})
}

// CancelPayment is a no-op for cancelled payments. Pending payments are
// cancelled without touching balances; completed ones are refunded. External
// payments go through the gateway failure path instead.
func (s *service) CancelPayment(ctx context.Context, a actor.Actor, id uuid.UUID, note string) (*Payment, error) {
	return s.mutate(ctx, a, id, func(q db.Querier, p *Payment) error {
		switch {
		case p.Status == StatusCancelled:
			return nil
		case p.Method == MethodExternal:
			return s.failExternalLocked(ctx, q, a, p, note)
		case p.Status == StatusCompleted:
			return s.refundLocked(ctx, q, a, p, note)
		default:
			return s.cancelLocked(ctx, q, a, p, note, nil)
		}
	})
}

// ChangeStatus drives a payment through the transition table. Standard
// transitions run their money-moving hook; overrides only relabel the status
// and need elevated authority.
func (s *service) ChangeStatus(ctx context.Context, a actor.Actor, id uuid.UUID, to Status, note string) (*Payment, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, to)
	}

	return s.mutate(ctx, a, id, func(q db.Querier, p *Payment) error {
		t, err := LookupTransition(p.Status, to)
		if err != nil {
			return err
		}
		if t.Elevated && (s.authz == nil || !s.authz.CanOverride(ctx, a)) {
			return ErrForbidden
		}

		switch t.Hook {
		case HookComplete:
			return s.completeLocked(ctx, q, a, p, a.ProfileID)
		case HookCancel:
			return s.cancelLocked(ctx, q, a, p, note, nil)
		case HookRefund:
			return s.refundLocked(ctx, q, a, p, note)
		case HookLabelOnly:
			return s.moveTo(ctx, q, a, p, t, note)
		}
		return fmt.Errorf("%w: no hook for %s", ErrInvalidTransition, t.Hook)
	})
}

// mutate locks the payment, runs fn and, after commit, emits metrics and
// events for whatever transition fn performed.
func (s *service) mutate(ctx context.Context, a actor.Actor, id uuid.UUID, fn func(q db.Querier, p *Payment) error) (*Payment, error) {
	var out *Payment
	var from Status
	var method Method

	err := s.tx.WithTx(ctx, func(q db.Querier) error {
		p, err := s.payments.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		from, method = p.Status, p.Method
		if err := fn(q, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		s.observeFailure(method, err)
		return nil, err
	}

	if out.Status != from {
		s.afterTransition(ctx, a, out, from)
	}
	return out, nil
}

func (s *service) afterTransition(ctx context.Context, a actor.Actor, p *Payment, from Status) {
	kind := TransitionStandard
	if t, err := LookupTransition(from, p.Status); err == nil {
		kind = t.Kind
	}
	metrics.RecordTransition(string(p.Status), string(kind))

	logger.Info("payment status changed",
		"payment_id", p.ID,
		"from", from,
		"to", p.Status,
		"kind", kind,
		"actor", a.ProfileID,
	)

	if kind == TransitionOverride {
		s.publish(ctx, events.PaymentStatusOverridden, a, p)
		return
	}

	switch p.Status {
	case StatusCompleted:
		metrics.RecordPayment("completed", string(p.Method))
		s.publish(ctx, events.PaymentCompleted, a, p)
	case StatusCancelled:
		metrics.RecordPayment("cancelled", string(p.Method))
		s.publish(ctx, events.PaymentCancelled, a, p)
	case StatusRefunded:
		metrics.RecordPayment("refunded", string(p.Method))
		s.publish(ctx, events.PaymentRefunded, a, p)
	}
}

func (s *service) completeLocked(ctx context.Context, q db.Querier, a actor.Actor, p *Payment, paidBy uuid.UUID) error {
	t, err := LookupTransition(p.Status, StatusCompleted)
	if err != nil {
		return err
	}
	if err := s.checkReference(ctx, q, p); err != nil {
		return err
	}

	exec, err := s.executorFor(p.Method)
	if err != nil {
		return err
	}
	if err := exec.complete(ctx, q, a, p, paidBy); err != nil {
		return err
	}

	now := s.now()
	p.PaidAt = &now
	return s.moveTo(ctx, q, a, p, t, "")
}

func (s *service) cancelLocked(ctx context.Context, q db.Querier, a actor.Actor, p *Payment, note string, meta Metadata) error {
	t, err := LookupTransition(p.Status, StatusCancelled)
	if err != nil {
		return err
	}
	if meta != nil {
		p.Metadata = p.Metadata.merge(meta)
	}
	return s.moveTo(ctx, q, a, p, t, note)
}

func (s *service) refundLocked(ctx context.Context, q db.Querier, a actor.Actor, p *Payment, note string) error {
	t, err := LookupTransition(p.Status, StatusRefunded)
	if err != nil {
		return err
	}

	exec, err := s.executorFor(p.Method)
	if err != nil {
		return err
	}
	if err := exec.reverse(ctx, q, a, p, note); err != nil {
		return err
	}

	if note != "" {
		p.Metadata = p.Metadata.merge(Metadata{MetaRefundReason: note})
	}
	return s.moveTo(ctx, q, a, p, t, note)
}

// moveTo persists p under its new status and writes the audit row in the
// same transaction.
func (s *service) moveTo(ctx context.Context, q db.Querier, a actor.Actor, p *Payment, t Transition, note string) error {
	p.Status = t.To
	if err := s.payments.Update(ctx, q, p); err != nil {
		return err
	}

	change := &StatusChange{
		PaymentID:       p.ID,
		OldStatus:       t.From,
		NewStatus:       t.To,
		TransitionType:  t.Kind,
		ChangedByUserID: a.ProfileID,
		Metadata:        Metadata{"hook": t.Hook.String(), "role": a.Role},
	}
	if note != "" {
		change.Reason = &note
	}
	return s.payments.RecordStatusChange(ctx, q, change)
}

// checkReference requires a ledger precursor to still exist. Business
// references (payouts, charges) belong to other modules and are not checked.
func (s *service) checkReference(ctx context.Context, q db.Querier, p *Payment) error {
	if p.ReferenceType == nil {
		return nil
	}
	if p.ReferenceID == nil {
		return ErrInvalidReference
	}

	var exists bool
	var err error
	switch *p.ReferenceType {
	case ReferenceTransaction:
		exists, err = s.transactions.Exists(ctx, q, *p.ReferenceID)
	case ReferenceCashTransaction:
		exists, err = s.cashTransactions.Exists(ctx, q, *p.ReferenceID)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s %s", ErrInvalidReference, *p.ReferenceType, *p.ReferenceID)
	}
	return nil
}

func (s *service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.payments.GetByID(ctx, s.reader, id)
}

func (s *service) StatusHistory(ctx context.Context, id uuid.UUID) ([]StatusChange, error) {
	if _, err := s.payments.GetByID(ctx, s.reader, id); err != nil {
		return nil, err
	}
	return s.payments.ListStatusChanges(ctx, s.reader, id)
}

func (s *service) PendingStats(ctx context.Context) (*PendingStats, error) {
	stats, err := s.payments.PendingStats(ctx, s.reader, s.now())
	if err != nil {
		return nil, err
	}
	metrics.SetPending(int64(stats.Pending), int64(stats.PendingOver1h), int64(stats.PendingOver24h))
	return stats, nil
}

func (s *service) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]Payment, error) {
	return s.payments.ListPendingOlderThan(ctx, s.reader, s.now().Add(-olderThan), limit)
}

func (s *service) observeFailure(m Method, err error) {
	switch {
	case errors.Is(err, money.ErrInsufficientFunds):
		metrics.RecordInsufficientFunds(string(m))
	case errors.Is(err, db.ErrRetryable):
		logger.Warn("payment operation hit lock contention", "method", m, "error", err)
	}
}

// publish runs after commit. Delivery problems are logged and never undo or
// fail the payment operation.
func (s *service) publish(ctx context.Context, t events.Type, a actor.Actor, p *Payment) {
	e := events.Event{
		ID:         uuid.New(),
		Type:       t,
		PaymentID:  p.ID,
		Status:     string(p.Status),
		Method:     string(p.Method),
		Reason:     string(p.Reason),
		Amount:     p.Amount,
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		ActorID:    a.ProfileID,
		OccurredAt: s.now(),
	}
	if err := s.events.Publish(ctx, e); err != nil {
		logger.Warn("failed to publish payment event", "type", t, "payment_id", p.ID, "error", err)
	}
}
