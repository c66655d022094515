package payment

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"lmsledger/internal/actor"
	"lmsledger/internal/db"
	"lmsledger/internal/gateway"
	"lmsledger/internal/ledger"
	"lmsledger/internal/money"
	"lmsledger/internal/wallet"
)

// executor moves balances for one payment method. complete applies the
// payment's effect and reverse undoes it with fresh ledger rows. Both run
// inside the caller's transaction.
type executor interface {
	complete(ctx context.Context, q db.Querier, a actor.Actor, p *Payment, paidBy uuid.UUID) error
	reverse(ctx context.Context, q db.Querier, a actor.Actor, p *Payment, note string) error
}

func (s *service) executorFor(m Method) (executor, error) {
	switch m {
	case MethodWallet:
		return walletExecutor{s}, nil
	case MethodCash:
		return cashExecutor{s}, nil
	case MethodExternal:
		return externalExecutor{s}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, m)
}

type walletExecutor struct{ s *service }

func (e walletExecutor) complete(ctx context.Context, q db.Querier, _ actor.Actor, p *Payment, _ uuid.UUID) error {
	debit, err := e.s.transfer(ctx, q, p, p.SenderID, p.SenderType, p.ReceiverID, p.ReceiverType, p.Reason.LedgerType())
	if err != nil {
		return err
	}
	if p.ReferenceType == nil {
		p.setReference(ReferenceTransaction, debit.ID)
	}
	return nil
}

func (e walletExecutor) reverse(ctx context.Context, q db.Querier, _ actor.Actor, p *Payment, _ string) error {
	_, err := e.s.transfer(ctx, q, p, p.ReceiverID, p.ReceiverType, p.SenderID, p.SenderType, ledger.TypeRefund)
	return err
}

// transfer moves p.Amount between two wallets and appends the debit and
// credit rows. Wallet rows are locked in ascending id order so two transfers
// touching the same pair cannot deadlock. It returns the debit row.
func (s *service) transfer(
	ctx context.Context,
	q db.Querier,
	p *Payment,
	fromOwner uuid.UUID, fromType wallet.OwnerType,
	toOwner uuid.UUID, toType wallet.OwnerType,
	txType ledger.TransactionType,
) (*ledger.Transaction, error) {
	from, err := s.wallets.GetOrCreate(ctx, q, fromOwner, fromType)
	if err != nil {
		return nil, err
	}
	to, err := s.wallets.GetOrCreate(ctx, q, toOwner, toType)
	if err != nil {
		return nil, err
	}

	legs := []struct {
		id    uuid.UUID
		delta money.Money
	}{
		{from.ID, p.Amount.Neg()},
		{to.ID, p.Amount},
	}
	sort.Slice(legs, func(i, j int) bool {
		return bytes.Compare(legs[i].id[:], legs[j].id[:]) < 0
	})

	after := make(map[uuid.UUID]money.Money, 2)
	for _, leg := range legs {
		w, err := s.wallets.ApplyDelta(ctx, q, leg.id, leg.delta)
		if err != nil {
			return nil, err
		}
		after[leg.id] = w.Balance
	}

	correlation := p.correlation()
	paymentID := p.ID

	debit := &ledger.Transaction{
		WalletID:      from.ID,
		FromWalletID:  &from.ID,
		ToWalletID:    &to.ID,
		Amount:        p.Amount,
		BalanceAfter:  after[from.ID],
		Type:          txType,
		CorrelationID: correlation,
		PaymentID:     &paymentID,
	}
	if err := s.transactions.Append(ctx, q, debit); err != nil {
		return nil, err
	}

	credit := &ledger.Transaction{
		WalletID:      to.ID,
		FromWalletID:  &from.ID,
		ToWalletID:    &to.ID,
		Amount:        p.Amount,
		BalanceAfter:  after[to.ID],
		Type:          txType,
		CorrelationID: correlation,
		PaymentID:     &paymentID,
	}
	if err := s.transactions.Append(ctx, q, credit); err != nil {
		return nil, err
	}

	return debit, nil
}

type cashExecutor struct{ s *service }

// cashSide picks the branch whose cashbox a cash payment touches: a branch
// receiver takes cash in, a branch sender pays cash out.
func cashSide(p *Payment) (uuid.UUID, ledger.Direction, error) {
	switch {
	case p.ReceiverType == wallet.OwnerBranch:
		return p.ReceiverID, ledger.DirectionIn, nil
	case p.SenderType == wallet.OwnerBranch:
		return p.SenderID, ledger.DirectionOut, nil
	}
	return uuid.Nil, "", fmt.Errorf("%w: cash payments need a branch on one side", ErrInvalidRequest)
}

func (e cashExecutor) complete(ctx context.Context, q db.Querier, a actor.Actor, p *Payment, paidBy uuid.UUID) error {
	branchID, dir, err := cashSide(p)
	if err != nil {
		return err
	}

	box, err := e.s.cashboxes.GetOrCreate(ctx, q, branchID)
	if err != nil {
		return err
	}

	row := &ledger.CashTransaction{
		BranchID:            branchID,
		CashboxID:           box.ID,
		Amount:              p.Amount,
		Direction:           dir,
		Type:                p.Reason.LedgerType(),
		ReceivedByProfileID: a.ProfileID,
		PaidByProfileID:     &paidBy,
	}
	if err := e.s.appendCash(ctx, q, p, row); err != nil {
		return err
	}

	p.setReference(ReferenceCashTransaction, row.ID)
	return nil
}

func (e cashExecutor) reverse(ctx context.Context, q db.Querier, a actor.Actor, p *Payment, _ string) error {
	if p.ReferenceType == nil || *p.ReferenceType != ReferenceCashTransaction || p.ReferenceID == nil {
		return fmt.Errorf("%w: payment %s has no cash row", ErrInvalidReference, p.ID)
	}

	orig, err := e.s.cashTransactions.GetByID(ctx, q, *p.ReferenceID)
	if err != nil {
		return err
	}

	row := &ledger.CashTransaction{
		BranchID:            orig.BranchID,
		CashboxID:           orig.CashboxID,
		Amount:              orig.Amount,
		Direction:           orig.Direction.Opposite(),
		Type:                ledger.TypeRefund,
		ReceivedByProfileID: a.ProfileID,
		PaidByProfileID:     orig.PaidByProfileID,
		ReversalOf:          &orig.ID,
	}
	return e.s.appendCash(ctx, q, p, row)
}

// appendCash applies row to its cashbox and appends it with the resulting
// balance snapshot.
func (s *service) appendCash(ctx context.Context, q db.Querier, p *Payment, row *ledger.CashTransaction) error {
	box, err := s.cashboxes.ApplyDelta(ctx, q, row.CashboxID, row.Delta())
	if err != nil {
		return err
	}

	paymentID := p.ID
	row.PaymentID = &paymentID
	row.BalanceAfter = box.Balance
	return s.cashTransactions.Append(ctx, q, row)
}

type externalExecutor struct{ s *service }

// complete credits the receiver for top-ups. Other external reasons settle
// outside the wallet system and only change the payment status.
func (e externalExecutor) complete(ctx context.Context, q db.Querier, _ actor.Actor, p *Payment, _ uuid.UUID) error {
	if p.Reason != ReasonTopup {
		return nil
	}

	to, err := e.s.wallets.GetOrCreate(ctx, q, p.ReceiverID, p.ReceiverType)
	if err != nil {
		return err
	}
	w, err := e.s.wallets.ApplyDelta(ctx, q, to.ID, p.Amount)
	if err != nil {
		return err
	}

	paymentID := p.ID
	credit := &ledger.Transaction{
		WalletID:      to.ID,
		ToWalletID:    &to.ID,
		Amount:        p.Amount,
		BalanceAfter:  w.Balance,
		Type:          ledger.TypeTopup,
		CorrelationID: p.correlation(),
		PaymentID:     &paymentID,
	}
	if err := e.s.transactions.Append(ctx, q, credit); err != nil {
		return err
	}

	if p.ReferenceType == nil {
		p.setReference(ReferenceTransaction, credit.ID)
	}
	return nil
}

// reverse takes a top-up back out of the receiver's wallet and then asks the
// gateway to return the money. A gateway error rolls the whole refund back.
// The refund key is derived from the payment id, so a transaction that rolls
// back after the gateway call replays the same refund on the next attempt.
func (e externalExecutor) reverse(ctx context.Context, q db.Querier, _ actor.Actor, p *Payment, note string) error {
	if p.Reason == ReasonTopup {
		from, err := e.s.wallets.GetOrCreate(ctx, q, p.ReceiverID, p.ReceiverType)
		if err != nil {
			return err
		}
		w, err := e.s.wallets.ApplyDelta(ctx, q, from.ID, p.Amount.Neg())
		if err != nil {
			return err
		}

		paymentID := p.ID
		debit := &ledger.Transaction{
			WalletID:      from.ID,
			FromWalletID:  &from.ID,
			Amount:        p.Amount,
			BalanceAfter:  w.Balance,
			Type:          ledger.TypeRefund,
			CorrelationID: p.correlation(),
			PaymentID:     &paymentID,
		}
		if err := e.s.transactions.Append(ctx, q, debit); err != nil {
			return err
		}
	}

	gw, err := e.s.gateways.Get(gateway.Type(p.Metadata.String(MetaGatewayType)))
	if err != nil {
		return err
	}
	err = gw.RefundPayment(ctx, gateway.RefundRequest{
		GatewayPaymentID: p.Metadata.String(MetaGatewayPaymentID),
		Amount:           p.Amount,
		Reason:           note,
		IdempotencyKey:   "refund:" + p.ID.String(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrGatewayFailure, err)
	}
	return nil
}
