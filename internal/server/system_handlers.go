package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"lmsledger/internal/api"
	"lmsledger/internal/auth"
)

const healthTimeout = 2 * time.Second

// @Summary      Health check
// @Description  Reports database and Redis reachability
// @Tags         system
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Failure      503 {object} api.HealthResponse
// @Router       /health [get]
func Health(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		resp := api.HealthResponse{Status: "ok"}
		code := http.StatusOK

		if db != nil {
			resp.Database = "up"
			if err := db.PingContext(ctx); err != nil {
				resp.Database = "down"
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		if rdb != nil {
			resp.Redis = "up"
			if err := rdb.Ping(ctx).Err(); err != nil {
				// Events and the sweeper lock degrade without Redis; payments still work.
				resp.Redis = "down"
				resp.Status = "degraded"
			}
		}

		c.JSON(code, resp)
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// @Summary      Refresh an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body server.refreshRequest true "Refresh token"
// @Success      200 {object} server.tokenResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      401 {object} api.ErrorResponse
// @Router       /auth/refresh [post]
func RefreshToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
			return
		}

		token, _, err := auth.RefreshAccessToken(req.RefreshToken, secret, secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid refresh token"})
			return
		}

		c.JSON(http.StatusOK, tokenResponse{AccessToken: token})
	}
}

// @Summary      Prometheus metrics
// @Description  Exposes Prometheus metrics in text format
// @Tags         system
// @Produce      text/plain
// @Success      200 {string} string
// @Router       /metrics [get]
func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
