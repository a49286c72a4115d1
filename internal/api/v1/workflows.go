package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orchepy/pkg/models"
)

func (h *APIHandlers) registerWorkflowRoutes(group *gin.RouterGroup) {
	group.GET("/workflows", h.listWorkflows)
	group.POST("/workflows", h.createWorkflow)
	group.GET("/workflows/:id", h.getWorkflow)
	group.PUT("/workflows/:id", h.updateWorkflow)
	group.DELETE("/workflows/:id", h.deleteWorkflow)
}

func (h *APIHandlers) listWorkflows(c *gin.Context) {
	workflows, err := h.repos.Workflows.ListAll(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflows": workflows})
}

func (h *APIHandlers) createWorkflow(c *gin.Context) {
	var req models.CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	workflow, err := models.NewWorkflow(req)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	if err := h.repos.Workflows.Create(c.Request.Context(), workflow); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, workflow)
}

func (h *APIHandlers) getWorkflow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	workflow, err := h.repos.Workflows.FindByID(c.Request.Context(), id)
	if err != nil {
		internalError(c, err)
		return
	}
	if workflow == nil {
		notFound(c, "workflow not found")
		return
	}
	c.JSON(http.StatusOK, workflow)
}

func (h *APIHandlers) updateWorkflow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	existing, err := h.repos.Workflows.FindByID(c.Request.Context(), id)
	if err != nil {
		internalError(c, err)
		return
	}
	if existing == nil {
		notFound(c, "workflow not found")
		return
	}

	var req models.UpdateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	applyWorkflowUpdate(existing, req)
	existing.UpdatedAt = time.Now().UTC()
	if err := existing.Validate(); err != nil {
		handleDomainError(c, err)
		return
	}

	if err := h.repos.Workflows.Update(c.Request.Context(), *existing); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, existing)
}

func applyWorkflowUpdate(w *models.Workflow, req models.UpdateWorkflowRequest) {
	if req.Name != nil {
		w.Name = *req.Name
	}
	if req.Phases != nil {
		w.Phases = req.Phases
	}
	if req.InitialPhase != nil {
		w.InitialPhase = *req.InitialPhase
	}
	if req.WebhookURL != nil {
		w.WebhookURL = req.WebhookURL
	}
	if req.Description != nil {
		w.Description = req.Description
	}
	if req.Automations != nil {
		w.Automations = req.Automations
	}
	if req.SlaConfig != nil {
		w.SlaConfig = req.SlaConfig
	}
	if req.Active != nil {
		w.Active = *req.Active
	}
}

func (h *APIHandlers) deleteWorkflow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.repos.Workflows.Delete(c.Request.Context(), id); err != nil {
		internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
