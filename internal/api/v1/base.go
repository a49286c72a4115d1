// Package v1 implements the fixed HTTP surface named in spec.md §6,
// following the reference codebase's internal/api/v1 handler-group
// convention (one file per resource, a shared APIHandlers receiver).
package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"orchepy/internal/db/repositories"
	"orchepy/internal/orchestrator"
	"orchepy/pkg/models"
)

// APIHandlers groups every resource handler behind the repositories and
// orchestrator they need.
type APIHandlers struct {
	repos *repositories.Repositories
	orc   *orchestrator.Orchestrator
}

// NewAPIHandlers constructs the handler group.
func NewAPIHandlers(repos *repositories.Repositories, orc *orchestrator.Orchestrator) *APIHandlers {
	return &APIHandlers{repos: repos, orc: orc}
}

// RegisterRoutes wires every resource's routes onto group (spec.md §6).
func (h *APIHandlers) RegisterRoutes(group *gin.RouterGroup) {
	h.registerWorkflowRoutes(group)
	h.registerCaseRoutes(group)
	h.registerEventRoutes(group)
	h.registerFlowRoutes(group)
	h.registerExecutionRoutes(group)
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

func pageParams(c *gin.Context) (limit, offset int) {
	limit = defaultLimit
	offset = 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

var errMissingWorkflowID = errors.New("workflow_id query parameter is required")

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{"error": message})
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// notFoundErrors lists the sentinel errors that map to 404 at the HTTP
// edge (spec.md §7 — internal packages never write to gin.Context directly).
var notFoundErrors = []error{
	models.ErrWorkflowNotFound,
	models.ErrCaseNotFound,
	models.ErrFlowNotFound,
	models.ErrExecutionNotFound,
	models.ErrWorkflowInactive,
}

// badRequestErrors lists the sentinel validation errors that map to 400.
var badRequestErrors = []error{
	models.ErrEmptyPhases,
	models.ErrInitialPhaseNotInPhases,
	models.ErrTargetPhaseNotInPhases,
}

// handleDomainError maps a domain-layer error to the appropriate HTTP
// status, falling back to 500 for anything unrecognized.
func handleDomainError(c *gin.Context, err error) {
	for _, sentinel := range notFoundErrors {
		if errors.Is(err, sentinel) {
			notFound(c, err.Error())
			return
		}
	}
	for _, sentinel := range badRequestErrors {
		if errors.Is(err, sentinel) {
			badRequest(c, err)
			return
		}
	}
	internalError(c, err)
}
