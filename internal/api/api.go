// Package api wires the gin HTTP server: health check, the /api/v1
// resource surface, and a minimal operator dashboard (SPEC_FULL.md §12).
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	v1 "orchepy/internal/api/v1"
	"orchepy/internal/config"
	"orchepy/internal/db/repositories"
	"orchepy/internal/logging"
	"orchepy/internal/middleware"
	"orchepy/internal/orchestrator"
)

// Server owns the gin router and the underlying http.Server.
type Server struct {
	cfg        *config.Config
	repos      *repositories.Repositories
	httpServer *http.Server
}

// New constructs a Server wiring the repositories, orchestrator, and IP
// whitelist middleware onto the fixed HTTP surface.
func New(cfg *config.Config, repos *repositories.Repositories, orc *orchestrator.Orchestrator) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	whitelist := middleware.NewWhitelist(cfg.WhitelistEnabled, cfg.WhitelistIPs)
	router.Use(whitelist.Middleware())

	router.GET("/health", healthCheck)
	router.GET("/", dashboard(repos))

	apiHandlers := v1.NewAPIHandlers(repos, orc)
	apiHandlers.RegisterRoutes(router.Group("/api/v1"))

	return &Server{
		cfg:   cfg,
		repos: repos,
		httpServer: &http.Server{
			Addr:    cfg.Addr(),
			Handler: router,
		},
	}
}

// corsMiddleware allows cross-origin calls against the JSON API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "orchepy",
	})
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		logging.Info("API server listening on %s", s.cfg.Addr())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("API server error: %v", err)
		}
	}()

	<-ctx.Done()

	logging.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

const dashboardTemplate = `<!DOCTYPE html>
<html>
<head><title>orchepy</title></head>
<body>
<h1>orchepy</h1>
<ul>
<li>Workflows: %d</li>
<li>Flows: %d</li>
</ul>
<p>See <code>/api/v1</code> for the JSON API.</p>
</body>
</html>`

// dashboard serves a minimal operator-facing summary page, grounded in
// the reference UI's role as a thin operator view rather than a full SPA.
func dashboard(repos *repositories.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		workflows, err := repos.Workflows.ListAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		flows, err := repos.Flows.ListAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fmt.Sprintf(dashboardTemplate, len(workflows), len(flows))))
	}
}
