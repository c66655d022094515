// Package sweeper cancels payments that stayed PENDING past their TTL.
package sweeper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"lmsledger/internal/actor"
	"lmsledger/internal/logger"
	"lmsledger/internal/metrics"
	"lmsledger/internal/payment"
)

const (
	lockKey   = "lmsledger:sweeper:lock"
	batchSize = 200
)

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

type Result struct {
	Scanned   int  `json:"scanned"`
	Cancelled int  `json:"cancelled"`
	Failed    int  `json:"failed"`
	Skipped   bool `json:"skipped"`
	// Unlocked is set when Redis was unreachable and the sweep ran without
	// the cross-instance lock.
	Unlocked bool `json:"unlocked,omitempty"`
}

type Sweeper struct {
	payments payment.Service
	redis    *redis.Client
	interval time.Duration
	ttl      time.Duration
}

// New builds a sweeper. A nil client disables the cross-instance lock.
func New(payments payment.Service, client *redis.Client, interval, ttl time.Duration) *Sweeper {
	return &Sweeper{
		payments: payments,
		redis:    client,
		interval: interval,
		ttl:      ttl,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	logger.Info("expiry sweeper started", "interval", s.interval.String(), "ttl", s.ttl.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce cancels every stale PENDING payment. One payment failing does not
// stop the rest; failures are counted in the result. When Redis errors the
// sweep still runs, unlocked: cancelling is safe under the payment row lock,
// the lock only saves duplicate work.
func (s *Sweeper) SweepOnce(ctx context.Context) (*Result, error) {
	unlocked := false
	release, ok, err := s.acquire(ctx)
	if err != nil {
		logger.Warn("sweeper lock unavailable, sweeping without it", "error", err)
		release, ok, unlocked = func() {}, true, true
	}
	if !ok {
		logger.Debug("sweep skipped, another instance holds the lock")
		return &Result{Skipped: true}, nil
	}
	defer release()

	stale, err := s.payments.ListStalePending(ctx, s.ttl, batchSize)
	if err != nil {
		return nil, err
	}

	res := &Result{Scanned: len(stale), Unlocked: unlocked}
	sys := actor.System()
	for _, p := range stale {
		if _, err := s.payments.CancelPayment(ctx, sys, p.ID, "expired"); err != nil {
			res.Failed++
			logger.Warn("failed to expire payment", "payment_id", p.ID, "error", err)
			continue
		}
		res.Cancelled++
	}

	metrics.RecordSweep("cancelled", res.Cancelled)
	metrics.RecordSweep("failed", res.Failed)

	if _, err := s.payments.PendingStats(ctx); err != nil {
		logger.Warn("failed to refresh pending stats", "error", err)
	}

	if res.Scanned > 0 {
		logger.Info("sweep finished", "scanned", res.Scanned, "cancelled", res.Cancelled, "failed", res.Failed)
	}
	return res, nil
}

func (s *Sweeper) acquire(ctx context.Context) (func(), bool, error) {
	if s.redis == nil {
		return func() {}, true, nil
	}

	token := uuid.NewString()
	ok, err := s.redis.SetNX(ctx, lockKey, token, s.interval).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		if err := s.redis.Eval(context.Background(), releaseScript, []string{lockKey}, token).Err(); err != nil {
			logger.Warn("failed to release sweeper lock", "error", err)
		}
	}
	return release, true, nil
}
