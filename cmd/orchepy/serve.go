package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"orchepy/internal/api"
	"orchepy/internal/casestate"
	"orchepy/internal/config"
	"orchepy/internal/db"
	"orchepy/internal/db/repositories"
	"orchepy/internal/logging"
	"orchepy/internal/orchestrator"
	"orchepy/internal/slamonitor"
	"orchepy/pkg/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchepy HTTP API and SLA monitor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Initialize(cfg.Debug)

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = database.Close() }()

	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	repos := repositories.New(database.Conn())
	applier := casestate.New(database.Conn())

	orc := orchestrator.New(
		repos.Cases,
		repos.Workflows,
		repos.Events,
		repos.Flows,
		repos.Executions,
		applier,
		orchestrator.Config{
			WebhookOnCaseCreate: cfg.WebhookOnCaseCreate,
			WebhookOnCaseMove:   cfg.WebhookOnCaseMove,
		},
	)

	monitor := slamonitor.New(repos.Workflows, caseListAdapter(repos))
	if err := monitor.Start(); err != nil {
		return fmt.Errorf("failed to start SLA monitor: %w", err)
	}
	defer monitor.Stop()

	server := api.New(cfg, repos, orc)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Info("received shutdown signal")
		cancel()
	}()

	return server.Start(ctx)
}

// caseListAdapter bridges repositories.CaseRepo.ListByWorkflowAndPhase's
// uuid.UUID-keyed signature to slamonitor's string-keyed CaseListFunc.
func caseListAdapter(repos *repositories.Repositories) slamonitor.CaseListFunc {
	return func(ctx context.Context, workflowID string, phase string) ([]models.Case, error) {
		id, err := uuid.Parse(workflowID)
		if err != nil {
			return nil, fmt.Errorf("invalid workflow id %q: %w", workflowID, err)
		}
		return repos.Cases.ListByWorkflowAndPhase(ctx, id, phase, 200, 0)
	}
}
