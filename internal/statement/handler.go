package statement

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lmsledger/internal/api"
	"lmsledger/internal/wallet"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// @Summary      Wallet statement
// @Description  Ledger rows of one wallet, newest first, with signed amounts
// @Tags         statements
// @Produce      json
// @Security     BearerAuth
// @Param        id     path  string true  "Wallet ID"
// @Param        status query string false "Payment status"
// @Param        reason query string false "Payment reason"
// @Param        from   query string false "RFC3339 lower bound (inclusive)"
// @Param        to     query string false "RFC3339 upper bound (exclusive)"
// @Param        limit  query int    false "Page size"
// @Param        offset query int    false "Page offset"
// @Success      200 {object} statement.Page[statement.WalletLine]
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /wallets/{id}/statement [get]
func (h *Handler) WalletStatement(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid wallet ID"})
		return
	}

	var f Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	page, err := h.service.WalletStatement(c.Request.Context(), walletID, f)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// @Summary      User statement
// @Description  Payments where the user is sender or receiver, signed from the user's side
// @Tags         statements
// @Produce      json
// @Security     BearerAuth
// @Param        id     path  string true  "User ID"
// @Param        status query string false "Payment status"
// @Param        reason query string false "Payment reason"
// @Param        limit  query int    false "Page size"
// @Param        offset query int    false "Page offset"
// @Success      200 {object} statement.Page[statement.UserLine]
// @Failure      400 {object} api.ErrorResponse
// @Router       /users/{id}/statement [get]
func (h *Handler) UserStatement(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	var f Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	page, err := h.service.UserStatement(c.Request.Context(), userID, f)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidFilter):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, wallet.ErrWalletNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Wallet not found"})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load statement"})
	}
}
