// Package repositories is the typed CRUD layer over the six orchepy_*
// tables, consumed by internal/orchestrator and internal/casestate
// (spec.md §4.9).
package repositories

import (
	"github.com/jmoiron/sqlx"
)

// Repositories aggregates every table-specific repository behind a single
// constructed value, mirroring the teacher's Repositories struct.
type Repositories struct {
	Workflows  *WorkflowRepo
	Cases      *CaseRepo
	Events     *EventRepo
	Flows      *FlowRepo
	Executions *ExecutionRepo

	db *sqlx.DB
}

// New constructs every repository over the shared connection pool.
func New(conn *sqlx.DB) *Repositories {
	return &Repositories{
		Workflows:  NewWorkflowRepo(conn),
		Cases:      NewCaseRepo(conn),
		Events:     NewEventRepo(conn),
		Flows:      NewFlowRepo(conn),
		Executions: NewExecutionRepo(conn),
		db:         conn,
	}
}

// BeginTx starts a transaction for the case-state transaction (spec.md §4.6).
func (r *Repositories) BeginTx() (*sqlx.Tx, error) {
	return r.db.Beginx()
}
