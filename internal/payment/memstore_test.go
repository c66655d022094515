package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"lmsledger/internal/cashbox"
	"lmsledger/internal/db"
	"lmsledger/internal/ledger"
	"lmsledger/internal/money"
	"lmsledger/internal/wallet"
)

// memStore is an in-memory stand-in for the Postgres schema. WithTx
// serializes transactions and restores a snapshot when fn fails, which gives
// the same all-or-nothing behaviour the row locks give in production.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	wallets   map[uuid.UUID]wallet.Wallet
	cashboxes map[uuid.UUID]cashbox.Cashbox
	txs       []ledger.Transaction
	cashTxs   []ledger.CashTransaction
	payments  map[uuid.UUID]Payment
	changes   []StatusChange
	seq       int64

	// failStatus makes the next audit insert for that status fail.
	failStatus Status
}

func newMemStore() *memStore {
	return &memStore{
		wallets:   make(map[uuid.UUID]wallet.Wallet),
		cashboxes: make(map[uuid.UUID]cashbox.Cashbox),
		payments:  make(map[uuid.UUID]Payment),
	}
}

type memSnapshot struct {
	wallets   map[uuid.UUID]wallet.Wallet
	cashboxes map[uuid.UUID]cashbox.Cashbox
	txs       []ledger.Transaction
	cashTxs   []ledger.CashTransaction
	payments  map[uuid.UUID]Payment
	changes   []StatusChange
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := memSnapshot{
		wallets:   make(map[uuid.UUID]wallet.Wallet, len(m.wallets)),
		cashboxes: make(map[uuid.UUID]cashbox.Cashbox, len(m.cashboxes)),
		txs:       append([]ledger.Transaction(nil), m.txs...),
		cashTxs:   append([]ledger.CashTransaction(nil), m.cashTxs...),
		payments:  make(map[uuid.UUID]Payment, len(m.payments)),
		changes:   append([]StatusChange(nil), m.changes...),
	}
	for k, v := range m.wallets {
		snap.wallets[k] = v
	}
	for k, v := range m.cashboxes {
		snap.cashboxes[k] = v
	}
	for k, v := range m.payments {
		snap.payments[k] = v
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets = snap.wallets
	m.cashboxes = snap.cashboxes
	m.txs = snap.txs
	m.cashTxs = snap.cashTxs
	m.payments = snap.payments
	m.changes = snap.changes
}

func (m *memStore) WithTx(ctx context.Context, fn func(q db.Querier) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(nil); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) nextSeq() int64 {
	m.seq++
	return m.seq
}

func clonePayment(p Payment) Payment {
	p.Metadata = Metadata{}.merge(p.Metadata)
	return p
}

// wallets

type memWallets struct{ m *memStore }

func (r memWallets) GetOrCreate(ctx context.Context, q db.Querier, ownerID uuid.UUID, ownerType wallet.OwnerType) (*wallet.Wallet, error) {
	if w, err := r.FindByOwner(ctx, q, ownerID, ownerType); err == nil {
		return w, nil
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := time.Now().UTC()
	w := wallet.Wallet{ID: uuid.New(), OwnerID: ownerID, OwnerType: ownerType, Currency: "EGP", CreatedAt: now, UpdatedAt: now}
	r.m.wallets[w.ID] = w
	return &w, nil
}

func (r memWallets) GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*wallet.Wallet, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	w, ok := r.m.wallets[id]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	return &w, nil
}

func (r memWallets) FindByOwner(ctx context.Context, q db.Querier, ownerID uuid.UUID, ownerType wallet.OwnerType) (*wallet.Wallet, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, w := range r.m.wallets {
		if w.OwnerID == ownerID && w.OwnerType == ownerType {
			w := w
			return &w, nil
		}
	}
	return nil, wallet.ErrWalletNotFound
}

func (r memWallets) ApplyDelta(ctx context.Context, q db.Querier, id uuid.UUID, delta money.Money) (*wallet.Wallet, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	w, ok := r.m.wallets[id]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	next := w.Balance.Add(delta)
	if next.IsNegative() {
		return nil, wallet.ErrInsufficientBalance
	}
	w.Balance = next
	r.m.wallets[id] = w
	return &w, nil
}

// cashboxes

type memCashboxes struct{ m *memStore }

func (r memCashboxes) GetOrCreate(ctx context.Context, q db.Querier, branchID uuid.UUID) (*cashbox.Cashbox, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, c := range r.m.cashboxes {
		if c.BranchID == branchID {
			c := c
			return &c, nil
		}
	}
	c := cashbox.Cashbox{ID: uuid.New(), BranchID: branchID, Currency: "EGP"}
	r.m.cashboxes[c.ID] = c
	return &c, nil
}

func (r memCashboxes) GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*cashbox.Cashbox, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.cashboxes[id]
	if !ok {
		return nil, cashbox.ErrCashboxNotFound
	}
	return &c, nil
}

func (r memCashboxes) ApplyDelta(ctx context.Context, q db.Querier, id uuid.UUID, delta money.Money) (*cashbox.Cashbox, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.cashboxes[id]
	if !ok {
		return nil, cashbox.ErrCashboxNotFound
	}
	next := c.Balance.Add(delta)
	if next.IsNegative() {
		return nil, cashbox.ErrInsufficientCash
	}
	c.Balance = next
	r.m.cashboxes[id] = c
	return &c, nil
}

// wallet ledger

type memTransactions struct{ m *memStore }

func (r memTransactions) Append(ctx context.Context, q db.Querier, t *ledger.Transaction) error {
	if !t.Amount.IsPositive() {
		return ledger.ErrNonPositiveAmount
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.Seq = r.m.nextSeq()
	t.CreatedAt = time.Now().UTC()
	r.m.txs = append(r.m.txs, *t)
	return nil
}

func (r memTransactions) Exists(ctx context.Context, q db.Querier, id uuid.UUID) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.txs {
		if t.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r memTransactions) ListByPayment(ctx context.Context, q db.Querier, paymentID uuid.UUID) ([]ledger.Transaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []ledger.Transaction{}
	for _, t := range r.m.txs {
		if t.PaymentID != nil && *t.PaymentID == paymentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memTransactions) ListByWallet(ctx context.Context, q db.Querier, walletID uuid.UUID) ([]ledger.Transaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []ledger.Transaction{}
	for _, t := range r.m.txs {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	return out, nil
}

// cash ledger

type memCashTransactions struct{ m *memStore }

func (r memCashTransactions) Append(ctx context.Context, q db.Querier, c *ledger.CashTransaction) error {
	if !c.Amount.IsPositive() {
		return ledger.ErrNonPositiveAmount
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c.ReversalOf != nil {
		for _, existing := range r.m.cashTxs {
			if existing.ReversalOf != nil && *existing.ReversalOf == *c.ReversalOf {
				return ledger.ErrAlreadyReversed
			}
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Seq = r.m.nextSeq()
	c.CreatedAt = time.Now().UTC()
	r.m.cashTxs = append(r.m.cashTxs, *c)
	return nil
}

func (r memCashTransactions) GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*ledger.CashTransaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, c := range r.m.cashTxs {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, ledger.ErrCashTransactionNotFound
}

func (r memCashTransactions) Exists(ctx context.Context, q db.Querier, id uuid.UUID) (bool, error) {
	_, err := r.GetByID(ctx, q, id)
	return err == nil, nil
}

func (r memCashTransactions) ListByCashbox(ctx context.Context, q db.Querier, cashboxID uuid.UUID, limit, offset int) ([]ledger.CashTransaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []ledger.CashTransaction{}
	for _, c := range r.m.cashTxs {
		if c.CashboxID == cashboxID {
			out = append(out, c)
		}
	}
	return out, nil
}

// payments

type memPayments struct{ m *memStore }

func (r memPayments) Create(ctx context.Context, q db.Querier, p *Payment) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if p.IdempotencyKey != nil {
		for _, existing := range r.m.payments {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *p.IdempotencyKey {
				return false, nil
			}
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Metadata == nil {
		p.Metadata = Metadata{}
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.m.payments[p.ID] = clonePayment(*p)
	return true, nil
}

func (r memPayments) GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (*Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	p = clonePayment(p)
	return &p, nil
}

func (r memPayments) GetForUpdate(ctx context.Context, q db.Querier, id uuid.UUID) (*Payment, error) {
	return r.GetByID(ctx, q, id)
}

func (r memPayments) find(match func(Payment) bool) (*Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.payments {
		if match(p) {
			p = clonePayment(p)
			return &p, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (r memPayments) FindByIdempotencyKey(ctx context.Context, q db.Querier, key string, senderID uuid.UUID) (*Payment, error) {
	return r.find(func(p Payment) bool {
		return p.IdempotencyKey != nil && *p.IdempotencyKey == key && p.SenderID == senderID
	})
}

func (r memPayments) FindByGatewayReference(ctx context.Context, q db.Querier, gatewayPaymentID string) (*Payment, error) {
	return r.find(func(p Payment) bool {
		return p.Method == MethodExternal && p.Metadata.String(MetaGatewayPaymentID) == gatewayPaymentID
	})
}

func (r memPayments) Update(ctx context.Context, q db.Querier, p *Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.payments[p.ID]; !ok {
		return ErrPaymentNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	r.m.payments[p.ID] = clonePayment(*p)
	return nil
}

func (r memPayments) RecordStatusChange(ctx context.Context, q db.Querier, c *StatusChange) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failStatus != "" && c.NewStatus == r.m.failStatus {
		r.m.failStatus = ""
		return errors.New("audit insert failed")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	r.m.changes = append(r.m.changes, *c)
	return nil
}

func (r memPayments) ListStatusChanges(ctx context.Context, q db.Querier, paymentID uuid.UUID) ([]StatusChange, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []StatusChange{}
	for _, c := range r.m.changes {
		if c.PaymentID == paymentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r memPayments) ListPendingOlderThan(ctx context.Context, q db.Querier, cutoff time.Time, limit int) ([]Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []Payment{}
	for _, p := range r.m.payments {
		if p.Status == StatusPending && p.CreatedAt.Before(cutoff) && len(out) < limit {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

func (r memPayments) PendingStats(ctx context.Context, q db.Querier, now time.Time) (*PendingStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stats := &PendingStats{}
	for _, p := range r.m.payments {
		if p.Status != StatusPending {
			continue
		}
		stats.Pending++
		if p.CreatedAt.Before(now.Add(-time.Hour)) {
			stats.PendingOver1h++
		}
		if p.CreatedAt.Before(now.Add(-24 * time.Hour)) {
			stats.PendingOver24h++
		}
	}
	return stats, nil
}

// helpers for tests

func (m *memStore) setCreatedAt(id uuid.UUID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.payments[id]
	p.CreatedAt = at
	m.payments[id] = p
}

func (m *memStore) totalWalletBalance() money.Money {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := money.Zero
	for _, w := range m.wallets {
		total = total.Add(w.Balance)
	}
	return total
}

func (m *memStore) paymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}
