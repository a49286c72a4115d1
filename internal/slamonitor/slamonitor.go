// Package slamonitor scans active cases for phases that have overrun
// their workflow's configured SLA, a supplemented feature (SPEC_FULL.md
// §12) grounded in the data model's otherwise-unconsumed WorkflowSlaConfig.
package slamonitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"orchepy/internal/logging"
	"orchepy/pkg/models"
)

// schedule runs the scan once a minute (SPEC_FULL.md §12).
const schedule = "@every 1m"

// WorkflowRepo is the subset of the workflow repository the monitor consumes.
type WorkflowRepo interface {
	ListActive(ctx context.Context) ([]models.Workflow, error)
}

// Monitor periodically scans active cases for SLA breaches and logs them.
type Monitor struct {
	cron      *cron.Cron
	workflows WorkflowRepo
	cases     CaseListFunc
}

// CaseListFunc lists cases for a (workflow, phase) pair; kept as a plain
// function type so Monitor doesn't need the repository package's concrete
// uuid.UUID type at the interface boundary.
type CaseListFunc func(ctx context.Context, workflowID string, phase string) ([]models.Case, error)

// New builds a Monitor. cases is expected to be a thin adapter over
// repositories.CaseRepo.ListByWorkflowAndPhase.
func New(workflows WorkflowRepo, cases CaseListFunc) *Monitor {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(log.New(log.Writer(), "SLA: ", log.LstdFlags))))
	return &Monitor{cron: c, workflows: workflows, cases: cases}
}

// Start schedules the periodic scan and starts the cron scheduler.
func (m *Monitor) Start() error {
	if _, err := m.cron.AddFunc(schedule, m.scanOnce); err != nil {
		return fmt.Errorf("failed to schedule SLA scan: %w", err)
	}
	m.cron.Start()
	logging.Info("SLA monitor started (schedule %q)", schedule)
	return nil
}

// Stop stops the cron scheduler, waiting for any in-flight scan to finish.
func (m *Monitor) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	logging.Info("SLA monitor stopped")
}

func (m *Monitor) scanOnce() {
	ctx := context.Background()
	workflows, err := m.workflows.ListActive(ctx)
	if err != nil {
		logging.Error("SLA scan: failed to list workflows: %v", err)
		return
	}

	now := time.Now().UTC()
	for _, workflow := range workflows {
		if workflow.SlaConfig == nil {
			continue
		}
		for phase, sla := range *workflow.SlaConfig {
			if !workflow.HasPhase(phase) || sla.Hours <= 0 {
				continue
			}
			cases, err := m.cases(ctx, workflow.ID.String(), phase)
			if err != nil {
				logging.Error("SLA scan: failed to list cases for workflow %s phase %q: %v", workflow.ID, phase, err)
				continue
			}
			budget := time.Duration(sla.Hours) * time.Hour
			for _, c := range cases {
				if c.Status != models.CaseActive {
					continue
				}
				elapsed := now.Sub(c.PhaseEnteredAt)
				if elapsed > budget {
					logging.Error("SLA breach: case %s in workflow %q phase %q has been active for %s (budget %dh)",
						c.ID, workflow.Name, phase, elapsed.Round(time.Minute), sla.Hours)
				}
			}
		}
	}
}
