package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fraudcase/internal/caseflow"
	"fraudcase/internal/models"
	"fraudcase/internal/stages"
)

// ScammerHandler handles HTTP requests for scammer profiles
type ScammerHandler struct {
	orchestrator *caseflow.Orchestrator
	logger       *zap.Logger
}

// NewScammerHandler creates a new scammer handler
func NewScammerHandler(orchestrator *caseflow.Orchestrator, logger *zap.Logger) *ScammerHandler {
	return &ScammerHandler{
		orchestrator: orchestrator,
		logger:       logger.Named("scammer_handler"),
	}
}

// GetScammer returns a scammer profile
func (h *ScammerHandler) GetScammer(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scammer ID", "kind": "validation"})
		return
	}

	profile, err := h.orchestrator.GetScammer(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateStatus changes a scammer profile status
func (h *ScammerHandler) UpdateStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scammer ID", "kind": "validation"})
		return
	}

	var req models.UpdateScammerStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	profile, err := h.orchestrator.SetScammerStatus(c.Request.Context(), p, id, req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Scammer status updated",
		zap.String("scammer_id", id.String()),
		zap.String("status", string(req.Status)),
		zap.String("actor_id", p.ID))
	c.JSON(http.StatusOK, profile)
}

// ListStages returns the stage table for UI callers
func ListStages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stages": stages.All()})
}
