package models

import "errors"

// Validation-level errors, surfaced by the HTTP layer as 400 responses.
var (
	ErrEmptyPhases             = errors.New("phases list cannot be empty")
	ErrInitialPhaseNotInPhases = errors.New("initial phase must be in phases list")
	ErrTargetPhaseNotInPhases  = errors.New("target phase must be in workflow phases")
)

// Not-found errors, surfaced as 404.
var (
	ErrWorkflowNotFound       = errors.New("workflow not found")
	ErrWorkflowInactive       = errors.New("workflow is inactive")
	ErrCaseNotFound           = errors.New("case not found")
	ErrFlowNotFound           = errors.New("flow not found")
	ErrExecutionNotFound      = errors.New("execution not found")
)
