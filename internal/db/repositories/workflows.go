package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"orchepy/pkg/models"
)

// WorkflowRepo manages workflow definition persistence.
type WorkflowRepo struct {
	db *sqlx.DB
}

func NewWorkflowRepo(db *sqlx.DB) *WorkflowRepo {
	return &WorkflowRepo{db: db}
}

// workflowRow mirrors the orchepy_workflows columns for sqlx struct scanning.
// phases is a native Postgres array (lib/pq), automations/sla_config are
// JSONB columns decoded into the richer models types after scan.
type workflowRow struct {
	ID           uuid.UUID      `db:"id"`
	Name         string         `db:"name"`
	Phases       pq.StringArray `db:"phases"`
	InitialPhase string         `db:"initial_phase"`
	WebhookURL   sql.NullString `db:"webhook_url"`
	Description  sql.NullString `db:"description"`
	Active       bool           `db:"active"`
	Automations  []byte         `db:"automations"`
	SlaConfig    []byte         `db:"sla_config"`
	CreatedAt    sql.NullTime   `db:"created_at"`
	UpdatedAt    sql.NullTime   `db:"updated_at"`
}

func (r workflowRow) toModel() (models.Workflow, error) {
	w := models.Workflow{
		ID:           r.ID,
		Name:         r.Name,
		Phases:       []string(r.Phases),
		InitialPhase: r.InitialPhase,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
	}
	if r.WebhookURL.Valid {
		w.WebhookURL = &r.WebhookURL.String
	}
	if r.Description.Valid {
		w.Description = &r.Description.String
	}
	if len(r.Automations) > 0 {
		var a models.WorkflowAutomations
		if err := json.Unmarshal(r.Automations, &a); err != nil {
			return models.Workflow{}, fmt.Errorf("decode automations: %w", err)
		}
		w.Automations = &a
	}
	if len(r.SlaConfig) > 0 {
		var s models.WorkflowSlaConfig
		if err := json.Unmarshal(r.SlaConfig, &s); err != nil {
			return models.Workflow{}, fmt.Errorf("decode sla_config: %w", err)
		}
		w.SlaConfig = &s
	}
	return w, nil
}

const workflowColumns = `id, name, phases, initial_phase, webhook_url, description, active, automations, sla_config, created_at, updated_at`

func (r *WorkflowRepo) Create(ctx context.Context, w models.Workflow) error {
	automations, slaConfig, err := encodeWorkflowJSON(w)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orchepy_workflows (id, name, phases, initial_phase, webhook_url, description, active, automations, sla_config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		w.ID, w.Name, pq.Array(w.Phases), w.InitialPhase, w.WebhookURL, w.Description, w.Active, automations, slaConfig, w.CreatedAt, w.UpdatedAt)
	return err
}

func (r *WorkflowRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	var row workflowRow
	err := r.db.GetContext(ctx, &row, `SELECT `+workflowColumns+` FROM orchepy_workflows WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WorkflowRepo) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	var row workflowRow
	err := r.db.GetContext(ctx, &row, `SELECT `+workflowColumns+` FROM orchepy_workflows WHERE id = $1 AND active = true`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WorkflowRepo) ListAll(ctx context.Context) ([]models.Workflow, error) {
	return r.listWhere(ctx, `SELECT `+workflowColumns+` FROM orchepy_workflows ORDER BY created_at DESC`)
}

func (r *WorkflowRepo) ListActive(ctx context.Context) ([]models.Workflow, error) {
	return r.listWhere(ctx, `SELECT `+workflowColumns+` FROM orchepy_workflows WHERE active = true ORDER BY created_at DESC`)
}

func (r *WorkflowRepo) listWhere(ctx context.Context, query string) ([]models.Workflow, error) {
	var rows []workflowRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	out := make([]models.Workflow, 0, len(rows))
	for _, row := range rows {
		w, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (r *WorkflowRepo) Update(ctx context.Context, w models.Workflow) error {
	automations, slaConfig, err := encodeWorkflowJSON(w)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE orchepy_workflows SET name = $1, phases = $2, initial_phase = $3, webhook_url = $4,
			description = $5, active = $6, automations = $7, sla_config = $8, updated_at = $9
		WHERE id = $10`,
		w.Name, pq.Array(w.Phases), w.InitialPhase, w.WebhookURL, w.Description, w.Active, automations, slaConfig, w.UpdatedAt, w.ID)
	return err
}

func (r *WorkflowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM orchepy_workflows WHERE id = $1`, id)
	return err
}

func (r *WorkflowRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orchepy_workflows SET active = $1, updated_at = now() WHERE id = $2`, active, id)
	return err
}

func encodeWorkflowJSON(w models.Workflow) (automations, slaConfig []byte, err error) {
	if w.Automations != nil {
		automations, err = json.Marshal(w.Automations)
		if err != nil {
			return nil, nil, fmt.Errorf("encode automations: %w", err)
		}
	}
	if w.SlaConfig != nil {
		slaConfig, err = json.Marshal(w.SlaConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("encode sla_config: %w", err)
		}
	}
	return automations, slaConfig, nil
}
