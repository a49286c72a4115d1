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

// FlowRepo manages flow persistence.
type FlowRepo struct {
	db *sqlx.DB
}

func NewFlowRepo(db *sqlx.DB) *FlowRepo {
	return &FlowRepo{db: db}
}

type flowRow struct {
	ID        uuid.UUID       `db:"id"`
	Name      string          `db:"name"`
	Trigger   json.RawMessage `db:"trigger"`
	Steps     json.RawMessage `db:"steps"`
	Active    bool            `db:"active"`
	CreatedAt sql.NullTime    `db:"created_at"`
	UpdatedAt sql.NullTime    `db:"updated_at"`
}

func (r flowRow) toModel() (models.Flow, error) {
	f := models.Flow{
		ID:        r.ID,
		Name:      r.Name,
		Active:    r.Active,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
	if err := json.Unmarshal(r.Trigger, &f.Trigger); err != nil {
		return models.Flow{}, fmt.Errorf("decode trigger: %w", err)
	}
	if err := json.Unmarshal(r.Steps, &f.Steps); err != nil {
		return models.Flow{}, fmt.Errorf("decode steps: %w", err)
	}
	return f, nil
}

const flowColumns = `id, name, trigger, steps, active, created_at, updated_at`

func (r *FlowRepo) Create(ctx context.Context, f models.Flow) error {
	trigger, err := json.Marshal(f.Trigger)
	if err != nil {
		return fmt.Errorf("encode trigger: %w", err)
	}
	steps, err := json.Marshal(f.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orchepy_flows (id, name, trigger, steps, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.Name, trigger, steps, f.Active, f.CreatedAt, f.UpdatedAt)
	return err
}

func (r *FlowRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Flow, error) {
	var row flowRow
	err := r.db.GetContext(ctx, &row, `SELECT `+flowColumns+` FROM orchepy_flows WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FlowRepo) ListAll(ctx context.Context) ([]models.Flow, error) {
	return r.listWhere(ctx, `SELECT `+flowColumns+` FROM orchepy_flows ORDER BY created_at DESC`)
}

func (r *FlowRepo) ListActive(ctx context.Context) ([]models.Flow, error) {
	return r.listWhere(ctx, `SELECT `+flowColumns+` FROM orchepy_flows WHERE active = true ORDER BY created_at DESC`)
}

func (r *FlowRepo) listWhere(ctx context.Context, query string) ([]models.Flow, error) {
	var rows []flowRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	out := make([]models.Flow, 0, len(rows))
	for _, row := range rows {
		f, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *FlowRepo) Update(ctx context.Context, f models.Flow) error {
	trigger, err := json.Marshal(f.Trigger)
	if err != nil {
		return fmt.Errorf("encode trigger: %w", err)
	}
	steps, err := json.Marshal(f.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE orchepy_flows SET name = $1, trigger = $2, steps = $3, active = $4, updated_at = $5 WHERE id = $6`,
		f.Name, trigger, steps, f.Active, f.UpdatedAt, f.ID)
	return err
}

func (r *FlowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM orchepy_flows WHERE id = $1`, id)
	return err
}
