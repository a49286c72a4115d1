package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"orchepy/pkg/models"
)

// ExecutionRepo manages execution-record persistence.
type ExecutionRepo struct {
	db *sqlx.DB
}

func NewExecutionRepo(db *sqlx.DB) *ExecutionRepo {
	return &ExecutionRepo{db: db}
}

type executionRow struct {
	ID          uuid.UUID       `db:"id"`
	FlowID      uuid.UUID       `db:"flow_id"`
	EventID     uuid.UUID       `db:"event_id"`
	Status      string          `db:"status"`
	CurrentStep sql.NullString  `db:"current_step"`
	StepsStatus json.RawMessage `db:"steps_status"`
	StartedAt   sql.NullTime    `db:"started_at"`
	CompletedAt sql.NullTime    `db:"completed_at"`
	Error       sql.NullString  `db:"error"`
}

func (r executionRow) toModel() (models.Execution, error) {
	e := models.Execution{
		ID:        r.ID,
		FlowID:    r.FlowID,
		EventID:   r.EventID,
		Status:    models.ExecutionStatus(r.Status),
		StartedAt: r.StartedAt.Time,
	}
	if r.CurrentStep.Valid {
		e.CurrentStep = &r.CurrentStep.String
	}
	if r.CompletedAt.Valid {
		e.CompletedAt = &r.CompletedAt.Time
	}
	if r.Error.Valid {
		e.Error = &r.Error.String
	}
	if len(r.StepsStatus) > 0 {
		if err := json.Unmarshal(r.StepsStatus, &e.StepsStatus); err != nil {
			return models.Execution{}, fmt.Errorf("decode steps_status: %w", err)
		}
	}
	return e, nil
}

const executionColumns = `id, flow_id, event_id, status, current_step, steps_status, started_at, completed_at, error`

func (r *ExecutionRepo) Create(ctx context.Context, e *models.Execution) error {
	stepsStatus, err := json.Marshal(e.StepsStatus)
	if err != nil {
		return fmt.Errorf("encode steps_status: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orchepy_executions (id, flow_id, event_id, status, current_step, steps_status, started_at, completed_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.FlowID, e.EventID, e.Status, e.CurrentStep, stepsStatus, e.StartedAt, e.CompletedAt, e.Error)
	return err
}

func (r *ExecutionRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	var row executionRow
	err := r.db.GetContext(ctx, &row, `SELECT `+executionColumns+` FROM orchepy_executions WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *ExecutionRepo) List(ctx context.Context, limit, offset int) ([]models.Execution, error) {
	var rows []executionRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+executionColumns+` FROM orchepy_executions ORDER BY started_at DESC LIMIT $1 OFFSET $2`, limit, offset); err != nil {
		return nil, err
	}
	out := make([]models.Execution, 0, len(rows))
	for _, row := range rows {
		e, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
