// Package casestate implements the case-state transaction (spec.md §4.6):
// it applies the automation interpreter's deferred CaseModification list,
// plus the history rows each MoveToPhase produces, inside one database
// transaction, then the caller re-reads the case.
package casestate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"orchepy/internal/logging"
	"orchepy/pkg/models"
)

// Applier applies a batch of CaseModifications transactionally.
type Applier struct {
	db *sqlx.DB
}

// New constructs an Applier over the shared connection pool.
func New(db *sqlx.DB) *Applier {
	return &Applier{db: db}
}

// Apply runs every mutation in mods against caseID inside a single
// transaction, in order, chaining MoveToPhase targets locally so a
// following mutation observes the phase the batch has moved to so far
// (spec.md §9, "Deferred mutations"). label becomes the history row's
// "<label> automation" reason. A no-op (empty mods) does nothing.
func (a *Applier) Apply(ctx context.Context, caseID uuid.UUID, workflow models.Workflow, mods []models.CaseModification, label string) error {
	if len(mods) == 0 {
		return nil
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentPhase string
	if err := tx.GetContext(ctx, &currentPhase, `SELECT current_phase FROM orchepy_cases WHERE id = $1`, caseID); err != nil {
		return fmt.Errorf("failed to fetch case state: %w", err)
	}

	for _, mod := range mods {
		switch mod.Kind {
		case models.ModMoveToPhase:
			currentPhase, err = applyMoveToPhase(ctx, tx, caseID, workflow, currentPhase, mod.Phase, label)
			if err != nil {
				return err
			}
		case models.ModSetField:
			applySetField(ctx, tx, caseID, mod.Field, mod.Value, label)
		default:
			logging.Error("unknown modification kind: %s", mod.Kind)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s automation modifications: %w", label, err)
	}
	return nil
}

// applyMoveToPhase updates the case's current/previous phase and appends
// one history row, returning the (possibly unchanged) phase the batch
// should treat as current going forward.
func applyMoveToPhase(ctx context.Context, tx *sqlx.Tx, caseID uuid.UUID, workflow models.Workflow, fromPhase, toPhase, label string) (string, error) {
	if !workflow.HasPhase(toPhase) {
		logging.Error("%s automation tried to move case %s to non-existent phase: %s", label, caseID, toPhase)
		return fromPhase, nil
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE orchepy_cases SET current_phase = $1, previous_phase = $2, phase_entered_at = $3, updated_at = $3 WHERE id = $4`,
		toPhase, fromPhase, time.Now().UTC(), caseID)
	if err != nil {
		logging.Error("failed to apply %s MoveToPhase automation for case %s: %v", label, caseID, err)
		return fromPhase, nil
	}

	reason := label + " automation"
	triggeredBy := "system"
	history := models.NewCaseHistory(caseID, &fromPhase, toPhase, &reason, &triggeredBy)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orchepy_case_history (id, case_id, from_phase, to_phase, reason, triggered_by, transitioned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		history.ID, history.CaseID, history.FromPhase, history.ToPhase, history.Reason, history.TriggeredBy, history.TransitionedAt); err != nil {
		logging.Error("failed to create history entry for %s automation: %v", label, err)
	}

	logging.Debug("%s automation moved case %s from %q to %q", label, caseID, fromPhase, toPhase)
	return toPhase, nil
}

// applySetField rewrites the path after field's "data." prefix into a
// Postgres jsonb_set pointer and applies it with create-missing-intermediates semantics.
func applySetField(ctx context.Context, tx *sqlx.Tx, caseID uuid.UUID, field string, value json.RawMessage, label string) {
	parts := strings.Split(field, ".")
	if len(parts) < 2 || parts[0] != "data" {
		logging.Error("unsupported field path for automation: %s", field)
		return
	}
	pointer := "{" + strings.Join(parts[1:], ",") + "}"

	if _, err := tx.ExecContext(ctx, `
		UPDATE orchepy_cases SET data = jsonb_set(data, $1, $2, true), updated_at = $3 WHERE id = $4`,
		pointer, []byte(value), time.Now().UTC(), caseID); err != nil {
		logging.Error("failed to apply %s SetField automation for case %s: %v", label, caseID, err)
		return
	}
	logging.Debug("%s automation set field %q for case %s", label, field, caseID)
}
