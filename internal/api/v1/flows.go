package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orchepy/pkg/models"
)

func (h *APIHandlers) registerFlowRoutes(group *gin.RouterGroup) {
	group.GET("/flows", h.listFlows)
	group.POST("/flows", h.createFlow)
	group.GET("/flows/:id", h.getFlow)
	group.PUT("/flows/:id", h.updateFlow)
	group.DELETE("/flows/:id", h.deleteFlow)
}

func (h *APIHandlers) listFlows(c *gin.Context) {
	flows, err := h.repos.Flows.ListAll(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flows": flows})
}

func (h *APIHandlers) createFlow(c *gin.Context) {
	var req models.CreateFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	flow := models.NewFlow(req)
	if err := h.repos.Flows.Create(c.Request.Context(), flow); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, flow)
}

func (h *APIHandlers) getFlow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	flow, err := h.repos.Flows.FindByID(c.Request.Context(), id)
	if err != nil {
		internalError(c, err)
		return
	}
	if flow == nil {
		notFound(c, "flow not found")
		return
	}
	c.JSON(http.StatusOK, flow)
}

func (h *APIHandlers) updateFlow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	existing, err := h.repos.Flows.FindByID(c.Request.Context(), id)
	if err != nil {
		internalError(c, err)
		return
	}
	if existing == nil {
		notFound(c, "flow not found")
		return
	}

	var req models.UpdateFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	applyFlowUpdate(existing, req)
	existing.UpdatedAt = time.Now().UTC()

	if err := h.repos.Flows.Update(c.Request.Context(), *existing); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, existing)
}

func applyFlowUpdate(f *models.Flow, req models.UpdateFlowRequest) {
	if req.Name != nil {
		f.Name = *req.Name
	}
	if req.Trigger != nil {
		f.Trigger = *req.Trigger
	}
	if req.Steps != nil {
		f.Steps = req.Steps
	}
	if req.Active != nil {
		f.Active = *req.Active
	}
}

func (h *APIHandlers) deleteFlow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.repos.Flows.Delete(c.Request.Context(), id); err != nil {
		internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
