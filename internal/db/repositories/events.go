package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"orchepy/pkg/models"
)

// EventRepo manages event persistence.
type EventRepo struct {
	db *sqlx.DB
}

func NewEventRepo(db *sqlx.DB) *EventRepo {
	return &EventRepo{db: db}
}

type eventRow struct {
	ID         uuid.UUID       `db:"id"`
	EventType  string          `db:"event_type"`
	Data       json.RawMessage `db:"data"`
	Metadata   json.RawMessage `db:"metadata"`
	ReceivedAt sql.NullTime    `db:"received_at"`
}

func (r eventRow) toModel() models.Event {
	return models.Event{
		ID:         r.ID,
		EventType:  r.EventType,
		Data:       r.Data,
		Metadata:   r.Metadata,
		ReceivedAt: r.ReceivedAt.Time,
	}
}

func (r *EventRepo) Create(ctx context.Context, e models.Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orchepy_events (id, event_type, data, metadata, received_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.EventType, e.Data, e.Metadata, e.ReceivedAt)
	return err
}

func (r *EventRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var row eventRow
	err := r.db.GetContext(ctx, &row, `SELECT id, event_type, data, metadata, received_at FROM orchepy_events WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e := row.toModel()
	return &e, nil
}

func (r *EventRepo) List(ctx context.Context, limit, offset int) ([]models.Event, error) {
	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, `SELECT id, event_type, data, metadata, received_at FROM orchepy_events ORDER BY received_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}
