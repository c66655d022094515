package payment

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lmsledger/internal/actor"
	"lmsledger/internal/api"
	"lmsledger/internal/auth"
	"lmsledger/internal/cashbox"
	"lmsledger/internal/db"
	"lmsledger/internal/gateway"
	"lmsledger/internal/logger"
	"lmsledger/internal/money"
	"lmsledger/internal/wallet"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type noteRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type statusRequest struct {
	Status Status `json:"status" validate:"required,oneof=PENDING COMPLETED CANCELLED REFUNDED"`
	Reason string `json:"reason" validate:"max=500"`
}

type completeRequest struct {
	PaidByProfileID *uuid.UUID `json:"paid_by_profile_id"`
}

// @Summary      Create a payment
// @Description  Records a payment; WALLET and CASH payments complete immediately unless deferred
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body payment.CreateRequest true "Payment payload"
// @Success      201 {object} payment.Payment
// @Failure      400 {object} api.ErrorResponse
// @Failure      409 {object} api.ErrorResponse
// @Failure      422 {object} api.ErrorResponse
// @Failure      503 {object} api.ErrorResponse
// @Router       /payments [post]
func (h *Handler) CreatePayment(c *gin.Context) {
	a, ok := requireActor(c)
	if !ok {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	p, err := h.service.CreatePayment(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

// @Summary      Get a payment
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Payment ID"
// @Success      200 {object} payment.Payment
// @Failure      404 {object} api.ErrorResponse
// @Router       /payments/{id} [get]
func (h *Handler) GetPayment(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}

	p, err := h.service.GetPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// @Summary      Payment status history
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Payment ID"
// @Success      200 {array} payment.StatusChange
// @Failure      404 {object} api.ErrorResponse
// @Router       /payments/{id}/history [get]
func (h *Handler) StatusHistory(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}

	changes, err := h.service.StatusHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, changes)
}

// @Summary      Complete a pending payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Payment ID"
// @Success      200 {object} payment.Payment
// @Failure      409 {object} api.ErrorResponse
// @Failure      422 {object} api.ErrorResponse
// @Router       /payments/{id}/complete [post]
func (h *Handler) CompletePayment(c *gin.Context) {
	a, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paymentID(c)
	if !ok {
		return
	}

	var req completeRequest
	if !bindOptional(c, &req) {
		return
	}

	p, err := h.service.CompletePayment(c.Request.Context(), a, id, req.PaidByProfileID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// @Summary      Refund a completed payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Payment ID"
// @Success      200 {object} payment.Payment
// @Failure      409 {object} api.ErrorResponse
// @Failure      422 {object} api.ErrorResponse
// @Failure      502 {object} api.ErrorResponse
// @Router       /payments/{id}/refund [post]
func (h *Handler) RefundPayment(c *gin.Context) {
	h.withNote(c, h.service.RefundPayment)
}

// @Summary      Cancel a payment
// @Description  Pending payments are cancelled; completed ones are refunded
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Payment ID"
// @Success      200 {object} payment.Payment
// @Failure      409 {object} api.ErrorResponse
// @Router       /payments/{id}/cancel [post]
func (h *Handler) CancelPayment(c *gin.Context) {
	h.withNote(c, h.service.CancelPayment)
}

func (h *Handler) withNote(c *gin.Context, op func(context.Context, actor.Actor, uuid.UUID, string) (*Payment, error)) {
	a, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paymentID(c)
	if !ok {
		return
	}

	var req noteRequest
	if !bindOptional(c, &req) {
		return
	}

	p, err := op(c.Request.Context(), a, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// @Summary      Change payment status
// @Description  Standard transitions move money; overrides need elevated authority
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Payment ID"
// @Success      200 {object} payment.Payment
// @Failure      400 {object} api.ErrorResponse
// @Failure      403 {object} api.ErrorResponse
// @Failure      409 {object} api.ErrorResponse
// @Router       /payments/{id}/status [post]
func (h *Handler) ChangeStatus(c *gin.Context) {
	a, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paymentID(c)
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if errs := api.ValidateStruct(req); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	p, err := h.service.ChangeStatus(c.Request.Context(), a, id, req.Status, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// @Summary      Start an external payment
// @Description  Creates a pending payment and a gateway checkout session
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body payment.ExternalRequest true "External payment payload"
// @Success      201 {object} payment.ExternalResult
// @Failure      400 {object} api.ErrorResponse
// @Failure      502 {object} api.ErrorResponse
// @Router       /payments/external [post]
func (h *Handler) InitiateExternalPayment(c *gin.Context) {
	a, ok := requireActor(c)
	if !ok {
		return
	}

	var req ExternalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	res, err := h.service.InitiateExternalPayment(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

// @Summary      Gateway webhook
// @Description  Applies a gateway completion notice; unknown references are acknowledged and ignored
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        gateway path string true "Gateway type"
// @Param        request body gateway.Notice true "Notice"
// @Success      200 {object} payment.Payment
// @Success      202 {object} api.MessageResponse
// @Failure      400 {object} api.ErrorResponse
// @Router       /webhooks/{gateway} [post]
func (h *Handler) GatewayWebhook(c *gin.Context) {
	var notice gateway.Notice
	if err := c.ShouldBindJSON(&notice); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	notice.Gateway = gateway.Type(c.Param("gateway"))

	p, err := h.service.ProcessExternalPaymentCompletion(c.Request.Context(), notice)
	if err != nil {
		respondError(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusAccepted, api.MessageResponse{Message: "ignored"})
		return
	}

	c.JSON(http.StatusOK, p)
}

// @Summary      Pending payment stats
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} payment.PendingStats
// @Router       /payments/stats/pending [get]
func (h *Handler) PendingStats(c *gin.Context) {
	stats, err := h.service.PendingStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func requireActor(c *gin.Context) (actor.Actor, bool) {
	a, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "actor not authenticated"})
		return actor.Actor{}, false
	}
	return a, true
}

func paymentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid payment ID"})
		return uuid.Nil, false
	}
	return id, true
}

// bindOptional accepts an empty body and validates a present one.
func bindOptional(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return false
	}
	if errs := api.ValidateStruct(req); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return false
	}
	return true
}

// StatusFor maps a payment operation error onto an HTTP status code.
func StatusFor(err error) int {
	var terr *TransitionError
	switch {
	case errors.As(err, &terr),
		errors.Is(err, ErrInvalidOperation),
		errors.Is(err, ErrIdempotencyKeyConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidReference),
		errors.Is(err, ErrUnsupportedMethod),
		errors.Is(err, ErrInvalidFeePercentage),
		errors.Is(err, money.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, ErrPaymentNotFound),
		errors.Is(err, wallet.ErrWalletNotFound),
		errors.Is(err, cashbox.ErrCashboxNotFound):
		return http.StatusNotFound
	case errors.Is(err, money.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, gateway.ErrGatewayFailure):
		return http.StatusBadGateway
	case errors.Is(err, db.ErrRetryable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		logger.Error("payment request failed", "path", c.FullPath(), "error", err)
		c.JSON(code, api.ErrorResponse{Error: "internal error"})
		return
	}

	resp := api.ErrorResponse{Error: err.Error()}
	var terr *TransitionError
	if errors.As(err, &terr) {
		resp.Details = gin.H{"from": terr.From, "to": terr.To, "valid_transitions": terr.Valid}
	}
	c.JSON(code, resp)
}
