package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"orchepy/pkg/models"
)

func (h *APIHandlers) registerEventRoutes(group *gin.RouterGroup) {
	group.POST("/events", h.submitEvent)
}

func (h *APIHandlers) submitEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	eventID, executionIDs, matchedFlows, err := h.orc.SubmitEvent(c.Request.Context(), req)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"event_id":      eventID,
		"matched_flows": matchedFlows,
		"execution_ids": executionIDs,
	})
}
