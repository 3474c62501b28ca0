package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/apierror"
	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/gin-gonic/gin"
)

// HealthHandler reports whether the warehouse database answers
type HealthHandler struct {
	ping func(ctx context.Context) error
	env  string
	log  logger.Logger
}

// NewHealthHandler creates a health handler; ping is usually sql.DB.PingContext
func NewHealthHandler(ping func(ctx context.Context) error, env string, log logger.Logger) *HealthHandler {
	return &HealthHandler{ping: ping, env: env, log: log}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		h.log.WithContext(ctx).Error("database ping failed", logger.Err(err))
		apierror.WriteProblem(c, apierror.NewUnavailableError(apierror.GetRequestID(c)))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"env":    h.env,
	})
}
