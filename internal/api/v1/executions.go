package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (h *APIHandlers) registerExecutionRoutes(group *gin.RouterGroup) {
	group.GET("/executions", h.listExecutions)
	group.GET("/executions/:id", h.getExecution)
	group.POST("/executions/:id/retry", h.retryExecution)
}

func (h *APIHandlers) listExecutions(c *gin.Context) {
	limit, offset := pageParams(c)
	executions, err := h.repos.Executions.List(c.Request.Context(), limit, offset)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": executions})
}

func (h *APIHandlers) getExecution(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	execution, err := h.repos.Executions.FindByID(c.Request.Context(), id)
	if err != nil {
		internalError(c, err)
		return
	}
	if execution == nil {
		notFound(c, "execution not found")
		return
	}
	c.JSON(http.StatusOK, execution)
}

// retryExecution is not implemented: re-running a failed flow execution
// needs idempotency semantics across already-applied step side effects
// that SPEC_FULL.md leaves open (spec.md §6).
func (h *APIHandlers) retryExecution(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "execution retry is not implemented"})
}
