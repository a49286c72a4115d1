package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"orchepy/pkg/models"
)

// CaseRepo manages case persistence (spec.md §4.9).
type CaseRepo struct {
	db *sqlx.DB
}

func NewCaseRepo(db *sqlx.DB) *CaseRepo {
	return &CaseRepo{db: db}
}

type caseRow struct {
	ID             uuid.UUID       `db:"id"`
	WorkflowID     uuid.UUID       `db:"workflow_id"`
	CurrentPhase   string          `db:"current_phase"`
	PreviousPhase  sql.NullString  `db:"previous_phase"`
	Data           json.RawMessage `db:"data"`
	Status         string          `db:"status"`
	Metadata       json.RawMessage `db:"metadata"`
	CreatedAt      sql.NullTime    `db:"created_at"`
	UpdatedAt      sql.NullTime    `db:"updated_at"`
	CompletedAt    sql.NullTime    `db:"completed_at"`
	PhaseEnteredAt sql.NullTime    `db:"phase_entered_at"`
}

func (r caseRow) toModel() models.Case {
	c := models.Case{
		ID:             r.ID,
		WorkflowID:     r.WorkflowID,
		CurrentPhase:   r.CurrentPhase,
		Data:           r.Data,
		Status:         models.CaseStatus(r.Status),
		Metadata:       r.Metadata,
		CreatedAt:      r.CreatedAt.Time,
		UpdatedAt:      r.UpdatedAt.Time,
		PhaseEnteredAt: r.PhaseEnteredAt.Time,
	}
	if r.PreviousPhase.Valid {
		c.PreviousPhase = &r.PreviousPhase.String
	}
	if r.CompletedAt.Valid {
		c.CompletedAt = &r.CompletedAt.Time
	}
	return c
}

const caseColumns = `id, workflow_id, current_phase, previous_phase, data, status, metadata, created_at, updated_at, completed_at, phase_entered_at`

func (r *CaseRepo) Create(ctx context.Context, c models.Case) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orchepy_cases (id, workflow_id, current_phase, previous_phase, data, status, metadata, created_at, updated_at, phase_entered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.WorkflowID, c.CurrentPhase, c.PreviousPhase, c.Data, c.Status, c.Metadata, c.CreatedAt, c.UpdatedAt, c.PhaseEnteredAt)
	return err
}

func (r *CaseRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	var row caseRow
	err := r.db.GetContext(ctx, &row, `SELECT `+caseColumns+` FROM orchepy_cases WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c := row.toModel()
	return &c, nil
}

func (r *CaseRepo) ListByWorkflow(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]models.Case, error) {
	return r.list(ctx, `SELECT `+caseColumns+` FROM orchepy_cases WHERE workflow_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, workflowID, limit, offset)
}

func (r *CaseRepo) ListByWorkflowAndPhase(ctx context.Context, workflowID uuid.UUID, phase string, limit, offset int) ([]models.Case, error) {
	return r.list(ctx, `SELECT `+caseColumns+` FROM orchepy_cases WHERE workflow_id = $1 AND current_phase = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`, workflowID, phase, limit, offset)
}

func (r *CaseRepo) ListByStatus(ctx context.Context, workflowID uuid.UUID, status models.CaseStatus, limit, offset int) ([]models.Case, error) {
	return r.list(ctx, `SELECT `+caseColumns+` FROM orchepy_cases WHERE workflow_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`, workflowID, status, limit, offset)
}

func (r *CaseRepo) list(ctx context.Context, query string, args ...any) ([]models.Case, error) {
	var rows []caseRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]models.Case, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *CaseRepo) UpdatePhase(ctx context.Context, id uuid.UUID, currentPhase string, previousPhase *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orchepy_cases SET current_phase = $1, previous_phase = $2, phase_entered_at = now(), updated_at = now() WHERE id = $3`,
		currentPhase, previousPhase, id)
	return err
}

func (r *CaseRepo) UpdateData(ctx context.Context, id uuid.UUID, data json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orchepy_cases SET data = $1, updated_at = now() WHERE id = $2`, data, id)
	return err
}

func (r *CaseRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.CaseStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orchepy_cases SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

// SetField writes a single dotted data.* path via jsonb_set, creating
// missing intermediates (spec.md §4.6).
func (r *CaseRepo) SetField(ctx context.Context, id uuid.UUID, pointer string, value json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orchepy_cases SET data = jsonb_set(data, $1, $2, true), updated_at = now() WHERE id = $3`,
		pointer, value, id)
	return err
}

func (r *CaseRepo) CreateHistory(ctx context.Context, h models.CaseHistory) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orchepy_case_history (id, case_id, from_phase, to_phase, reason, triggered_by, transitioned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.CaseID, h.FromPhase, h.ToPhase, h.Reason, h.TriggeredBy, h.TransitionedAt)
	return err
}

func (r *CaseRepo) GetHistory(ctx context.Context, caseID uuid.UUID) ([]models.CaseHistory, error) {
	var rows []struct {
		ID             uuid.UUID      `db:"id"`
		CaseID         uuid.UUID      `db:"case_id"`
		FromPhase      sql.NullString `db:"from_phase"`
		ToPhase        string         `db:"to_phase"`
		Reason         sql.NullString `db:"reason"`
		TriggeredBy    sql.NullString `db:"triggered_by"`
		TransitionedAt sql.NullTime   `db:"transitioned_at"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT id, case_id, from_phase, to_phase, reason, triggered_by, transitioned_at
		FROM orchepy_case_history WHERE case_id = $1 ORDER BY transitioned_at DESC`, caseID)
	if err != nil {
		return nil, err
	}
	out := make([]models.CaseHistory, 0, len(rows))
	for _, row := range rows {
		h := models.CaseHistory{
			ID:             row.ID,
			CaseID:         row.CaseID,
			ToPhase:        row.ToPhase,
			TransitionedAt: row.TransitionedAt.Time,
		}
		if row.FromPhase.Valid {
			h.FromPhase = &row.FromPhase.String
		}
		if row.Reason.Valid {
			h.Reason = &row.Reason.String
		}
		if row.TriggeredBy.Valid {
			h.TriggeredBy = &row.TriggeredBy.String
		}
		out = append(out, h)
	}
	return out, nil
}

func (r *CaseRepo) CountByWorkflow(ctx context.Context, workflowID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM orchepy_cases WHERE workflow_id = $1`, workflowID)
	return count, err
}
