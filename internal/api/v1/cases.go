package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orchepy/pkg/models"
)

func (h *APIHandlers) registerCaseRoutes(group *gin.RouterGroup) {
	group.GET("/cases", h.listCases)
	group.POST("/cases", h.createCase)
	group.GET("/cases/:id", h.getCase)
	group.PATCH("/cases/:id/data", h.updateCaseData)
	group.PUT("/cases/:id/move", h.moveCase)
	group.GET("/cases/:id/history", h.getCaseHistory)
}

func (h *APIHandlers) listCases(c *gin.Context) {
	workflowIDStr := c.Query("workflow_id")
	if workflowIDStr == "" {
		badRequest(c, errMissingWorkflowID)
		return
	}
	workflowID, err := uuid.Parse(workflowIDStr)
	if err != nil {
		badRequest(c, err)
		return
	}
	limit, offset := pageParams(c)

	var cases []models.Case
	if phase := c.Query("phase"); phase != "" {
		cases, err = h.repos.Cases.ListByWorkflowAndPhase(c.Request.Context(), workflowID, phase, limit, offset)
	} else if status := c.Query("status"); status != "" {
		cases, err = h.repos.Cases.ListByStatus(c.Request.Context(), workflowID, models.CaseStatus(status), limit, offset)
	} else {
		cases, err = h.repos.Cases.ListByWorkflow(c.Request.Context(), workflowID, limit, offset)
	}
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases})
}

func (h *APIHandlers) createCase(c *gin.Context) {
	var req models.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	newCase, err := h.orc.CreateCase(c.Request.Context(), req)
	if err != nil {
		handleDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCase)
}

func (h *APIHandlers) getCase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	existing, err := h.repos.Cases.FindByID(c.Request.Context(), id)
	if err != nil {
		internalError(c, err)
		return
	}
	if existing == nil {
		notFound(c, "case not found")
		return
	}
	c.JSON(http.StatusOK, existing)
}

func (h *APIHandlers) updateCaseData(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	existing, err := h.repos.Cases.FindByID(c.Request.Context(), id)
	if err != nil {
		internalError(c, err)
		return
	}
	if existing == nil {
		notFound(c, "case not found")
		return
	}

	var req models.UpdateCaseDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	merged, err := mergeCaseData(existing.Data, req.Data)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.repos.Cases.UpdateData(c.Request.Context(), id, merged); err != nil {
		internalError(c, err)
		return
	}
	existing.Data = merged
	existing.UpdatedAt = time.Now().UTC()
	c.JSON(http.StatusOK, existing)
}

// mergeCaseData shallow-merges patch's top-level keys into base, per
// UpdateCaseDataRequest's documented semantics.
func mergeCaseData(base, patch json.RawMessage) (json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &merged); err != nil {
			return nil, fmt.Errorf("existing case data is not a JSON object: %w", err)
		}
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return nil, fmt.Errorf("patch data must be a JSON object: %w", err)
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (h *APIHandlers) moveCase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	var req models.MoveCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	moved, err := h.orc.MoveCase(c.Request.Context(), id, req)
	if err != nil {
		handleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, moved)
}

func (h *APIHandlers) getCaseHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	history, err := h.repos.Cases.GetHistory(c.Request.Context(), id)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}
