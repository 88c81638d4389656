package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Brownbull/gabeda-backend/pkg/version"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleHealth reports whether the database answers
func (h *Handler) HandleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "version": version.Get()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Get()})
}
