package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fraudcase/internal/caseflow"
	"fraudcase/internal/database"
	"fraudcase/internal/models"
)

// CaseHandler handles HTTP requests for fraud cases
type CaseHandler struct {
	orchestrator *caseflow.Orchestrator
	logger       *zap.Logger
}

// NewCaseHandler creates a new case handler
func NewCaseHandler(orchestrator *caseflow.Orchestrator, logger *zap.Logger) *CaseHandler {
	return &CaseHandler{
		orchestrator: orchestrator,
		logger:       logger.Named("case_handler"),
	}
}

// SubmitCase registers a new fraud report
func (h *CaseHandler) SubmitCase(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req models.SubmitCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	created, err := h.orchestrator.SubmitCase(c.Request.Context(), p, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Location", "/api/v1/cases/"+created.ID.String())
	c.JSON(http.StatusCreated, created)
}

// GetCase returns a case by id or case code
func (h *CaseHandler) GetCase(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	found, err := h.orchestrator.GetCase(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// ListCases lists cases with filtering and pagination
func (h *CaseHandler) ListCases(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	paginate := database.NewPaginate(limit, offset)

	filter, err := parseCaseFilter(c)
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}

	cases, total, err := h.orchestrator.ListCases(c.Request.Context(), p, filter, paginate)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, database.NewPaginatedResult(cases, total, paginate))
}

func parseCaseFilter(c *gin.Context) (*models.CaseFilter, error) {
	filter := &models.CaseFilter{}

	if v := c.Query("status"); v != "" {
		stage := models.Stage(v)
		filter.Status = &stage
	}
	if v := c.Query("case_type"); v != "" {
		filter.CaseType = &v
	}
	if v := c.Query("priority"); v != "" {
		priority := models.Priority(v)
		filter.Priority = &priority
	}
	if v := c.Query("reporter_id"); v != "" {
		filter.ReporterID = &v
	}
	if v := c.Query("assigned_officer_id"); v != "" {
		filter.AssignedOfficerID = &v
	}
	if v := c.Query("scammer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid scammer_id: %w", err)
		}
		filter.ScammerID = &id
	}

	return filter, nil
}

// GetTimeline returns the raw ledger, or the per-stage projection when
// view=projected
func (h *CaseHandler) GetTimeline(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	projected := c.Query("view") == "projected"
	entries, err := h.orchestrator.GetTimeline(c.Request.Context(), p, c.Param("id"), projected)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": len(entries)})
}

// AdvanceStage moves a case to the requested stage
func (h *CaseHandler) AdvanceStage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req models.AdvanceStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	result, err := h.orchestrator.AdvanceStage(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RetryNotifications re-sends the legal notice to categories that failed
func (h *CaseHandler) RetryNotifications(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	result, err := h.orchestrator.RetryNotifications(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetDocument streams the generated legal notice
func (h *CaseHandler) GetDocument(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	doc, err := h.orchestrator.GetDocument(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, doc.ID))
	c.Header("X-Content-Digest", "blake2b-256="+doc.Digest)
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}
