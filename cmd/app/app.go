package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"lmsledger/internal/auth"
	"lmsledger/internal/cashbox"
	"lmsledger/internal/config"
	"lmsledger/internal/db"
	"lmsledger/internal/events"
	"lmsledger/internal/gateway"
	"lmsledger/internal/ledger"
	"lmsledger/internal/logger"
	"lmsledger/internal/payment"
	"lmsledger/internal/statement"
	"lmsledger/internal/user"
	"lmsledger/internal/wallet"
)

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg        *config.Config
	db         *sqlx.DB
	redis      *redis.Client
	queue      *events.Queue
	wallets    wallet.Repository
	payments   payment.Service
	statements statement.Service
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connected")

	a := &app{cfg: cfg, db: database}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, events and sweeper lock degrade", "addr", cfg.RedisAddr, "error", err)
		}
		a.queue = events.NewQueue(a.redis, cfg.EventsQueue)
		for _, t := range []events.Type{
			events.PaymentCreated,
			events.PaymentCompleted,
			events.PaymentCancelled,
			events.PaymentRefunded,
			events.PaymentStatusOverridden,
		} {
			a.queue.Subscribe(t, events.LogHandler)
		}
		publisher = a.queue
	}

	fees, err := payment.NewStaticFees(cfg.FeesPercentage)
	if err != nil {
		database.Close()
		return nil, err
	}

	gateways := gateway.NewRegistry()
	gateways.Register(gateway.TypeSandbox, gateway.NewSandbox(cfg.GatewayReturnURL))

	a.wallets = wallet.NewRepository(cfg.Currency)
	a.payments = payment.NewService(payment.Dependencies{
		Tx:               db.NewStore(database, cfg.LockTimeout),
		Reader:           database,
		Payments:         payment.NewRepository(),
		Wallets:          a.wallets,
		Cashboxes:        cashbox.NewRepository(cfg.Currency),
		Transactions:     ledger.NewTransactionRepository(),
		CashTransactions: ledger.NewCashTransactionRepository(),
		Fees:             fees,
		Authorizer:       auth.NewRoleAuthorizer(),
		Gateways:         gateways,
		Events:           publisher,
		Currency:         cfg.Currency,
		ReturnURL:        cfg.GatewayReturnURL,
	})
	a.statements = statement.NewService(
		statement.NewRepository(database),
		a.wallets,
		database,
		user.NewRepository(database),
	)

	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("Error closing Redis client", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		logger.Warn("Error closing database", "error", err)
	}
}
