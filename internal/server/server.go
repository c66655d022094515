package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"lmsledger/internal/actor"
	"lmsledger/internal/auth"
	"lmsledger/internal/config"
	"lmsledger/internal/logger"
	"lmsledger/internal/payment"
	"lmsledger/internal/statement"
	"lmsledger/internal/wallet"
)

type Deps struct {
	Config     *config.Config
	DB         *sqlx.DB
	Redis      *redis.Client
	Payments   payment.Service
	Statements statement.Service
	Wallets    wallet.Repository
}

type Server struct {
	router  *gin.Engine
	limiter *RateLimiter
	http    *http.Server
}

func New(deps Deps) *Server {
	cfg := deps.Config

	router := gin.New()
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 3*time.Minute)
	router.Use(
		gin.Recovery(),
		RequestIDMiddleware(),
		RequestLoggingMiddleware(),
		MetricsMiddleware(),
		corsMiddleware(),
		limiter.Middleware(),
	)

	paymentHandler := payment.NewHandler(deps.Payments)
	statementHandler := statement.NewHandler(deps.Statements)
	walletHandler := wallet.NewHandler(deps.Wallets, deps.DB)

	router.GET("/health", Health(deps.DB, deps.Redis))
	router.GET("/metrics", Metrics())
	router.POST("/auth/refresh", RefreshToken(cfg.JWTSecret))
	router.POST("/webhooks/:gateway", paymentHandler.GatewayWebhook)

	protected := router.Group("/")
	protected.Use(auth.AuthMiddleware(cfg.JWTSecret))
	{
		protected.POST("/payments", paymentHandler.CreatePayment)
		protected.POST("/payments/external", paymentHandler.InitiateExternalPayment)
		protected.GET("/payments/:id", paymentHandler.GetPayment)
		protected.GET("/payments/:id/history", paymentHandler.StatusHistory)
		protected.POST("/payments/:id/complete", paymentHandler.CompletePayment)
		protected.POST("/payments/:id/refund", paymentHandler.RefundPayment)
		protected.POST("/payments/:id/cancel", paymentHandler.CancelPayment)

		protected.GET("/wallets/:id", walletHandler.GetWallet)
		protected.GET("/wallets/:id/statement", statementHandler.WalletStatement)
		protected.GET("/owners/:ownerType/:ownerID/wallet", walletHandler.GetOwnerWallet)
		protected.GET("/users/:id/statement", statementHandler.UserStatement)
	}

	requireAdmin := auth.RequireRole(actor.RoleAdmin, actor.RoleSuperAdmin)
	admin := router.Group("/")
	admin.Use(auth.AuthMiddleware(cfg.JWTSecret), requireAdmin)
	{
		admin.POST("/payments/:id/status", paymentHandler.ChangeStatus)
		admin.GET("/payments/stats/pending", paymentHandler.PendingStats)
	}

	return &Server{
		router:  router,
		limiter: limiter,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logger.Info("HTTP server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.http.Shutdown(ctx)
}
