package casestate

import (
	"context"
	"encoding/json"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"orchepy/pkg/models"
)

func newMockApplier(t *testing.T) (*Applier, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return New(sqlxDB), mock, func() { _ = db.Close() }
}

func TestApplyMoveToPhaseAppendsHistoryAndCommits(t *testing.T) {
	applier, mock, closeFn := newMockApplier(t)
	defer closeFn()

	caseID := uuid.New()
	workflow := models.Workflow{Phases: []string{"Review", "Approved"}}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT current_phase FROM orchepy_cases WHERE id = \$1`).
		WithArgs(caseID).
		WillReturnRows(sqlmock.NewRows([]string{"current_phase"}).AddRow("Review"))
	mock.ExpectExec(`UPDATE orchepy_cases SET current_phase`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO orchepy_case_history`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mods := []models.CaseModification{{Kind: models.ModMoveToPhase, Phase: "Approved"}}
	err := applier.Apply(context.Background(), caseID, workflow, mods, "on_enter")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySkipsMoveToUnknownPhase(t *testing.T) {
	applier, mock, closeFn := newMockApplier(t)
	defer closeFn()

	caseID := uuid.New()
	workflow := models.Workflow{Phases: []string{"Review"}}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT current_phase FROM orchepy_cases WHERE id = \$1`).
		WithArgs(caseID).
		WillReturnRows(sqlmock.NewRows([]string{"current_phase"}).AddRow("Review"))
	mock.ExpectCommit()

	mods := []models.CaseModification{{Kind: models.ModMoveToPhase, Phase: "DoesNotExist"}}
	err := applier.Apply(context.Background(), caseID, workflow, mods, "on_enter")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySetFieldRewritesDottedPath(t *testing.T) {
	applier, mock, closeFn := newMockApplier(t)
	defer closeFn()

	caseID := uuid.New()
	workflow := models.Workflow{Phases: []string{"Review"}}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT current_phase FROM orchepy_cases WHERE id = \$1`).
		WithArgs(caseID).
		WillReturnRows(sqlmock.NewRows([]string{"current_phase"}).AddRow("Review"))
	mock.ExpectExec(`UPDATE orchepy_cases SET data = jsonb_set`).
		WithArgs("{priority}", []byte(`"high"`), sqlmock.AnyArg(), caseID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mods := []models.CaseModification{{Kind: models.ModSetField, Field: "data.priority", Value: json.RawMessage(`"high"`)}}
	err := applier.Apply(context.Background(), caseID, workflow, mods, "on_enter")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEmptyModsIsNoOp(t *testing.T) {
	applier, mock, closeFn := newMockApplier(t)
	defer closeFn()

	err := applier.Apply(context.Background(), uuid.New(), models.Workflow{}, nil, "on_enter")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
