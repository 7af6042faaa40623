package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Checker reports whether a dependency is usable
type Checker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	store  Checker
	cache  Checker
	logger *zap.Logger
}

// NewHealthHandler creates a new health handler. cache may be nil.
func NewHealthHandler(store, cache Checker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		cache:  cache,
		logger: logger.Named("health_handler"),
	}
}

// Health returns basic health status
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "fraudcase",
		"version": "1.0.0",
	})
}

// Ready returns readiness status including store connectivity
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.store.Health(ctx); err != nil {
		h.logger.Error("Store health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"error":  "database connection failed",
		})
		return
	}

	body := gin.H{"status": "ready", "database": "connected"}
	if h.cache != nil {
		// the cache is optional so a failure degrades rather than blocks
		if err := h.cache.Health(ctx); err != nil {
			h.logger.Warn("Cache health check failed", zap.Error(err))
			body["cache"] = "unavailable"
		} else {
			body["cache"] = "connected"
		}
	}

	c.JSON(http.StatusOK, body)
}

// Live returns liveness status
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
