package wallet

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lmsledger/internal/api"
	"lmsledger/internal/db"
)

type Handler struct {
	repo   Repository
	reader db.Querier
}

func NewHandler(repo Repository, reader db.Querier) *Handler {
	return &Handler{
		repo:   repo,
		reader: reader,
	}
}

// @Summary      Get a wallet
// @Tags         wallets
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Wallet ID"
// @Success      200 {object} wallet.Wallet
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /wallets/{id} [get]
func (h *Handler) GetWallet(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid wallet ID"})
		return
	}

	w, err := h.repo.GetByID(c.Request.Context(), h.reader, id)
	h.respond(c, w, err)
}

// @Summary      Find a wallet by owner
// @Tags         wallets
// @Produce      json
// @Security     BearerAuth
// @Param        ownerType path string true "USER, BRANCH, CENTER or SYSTEM"
// @Param        ownerID   path string true "Owner ID"
// @Success      200 {object} wallet.Wallet
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /owners/{ownerType}/{ownerID}/wallet [get]
func (h *Handler) GetOwnerWallet(c *gin.Context) {
	ownerType := OwnerType(strings.ToUpper(c.Param("ownerType")))
	if !ownerType.Valid() {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid owner type"})
		return
	}
	ownerID, err := uuid.Parse(c.Param("ownerID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid owner ID"})
		return
	}

	w, err := h.repo.FindByOwner(c.Request.Context(), h.reader, ownerID, ownerType)
	h.respond(c, w, err)
}

func (h *Handler) respond(c *gin.Context, w *Wallet, err error) {
	switch {
	case errors.Is(err, ErrWalletNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Wallet not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load wallet"})
	default:
		c.JSON(http.StatusOK, w)
	}
}
