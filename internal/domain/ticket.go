package domain

import "time"

// WorkflowStage enumerates lifecycle states for tickets.
type WorkflowStage string

const (
	StageResearch     WorkflowStage = "RESEARCH"
	StagePlanPending  WorkflowStage = "PLAN_PENDING"
	StagePlanRejected WorkflowStage = "PLAN_REJECTED"
	StagePlanRevised  WorkflowStage = "PLAN_REVISED"
	StageExecuting    WorkflowStage = "EXECUTING"
	StageClosed       WorkflowStage = "CLOSED"
	StageAbandoned    WorkflowStage = "ABANDONED"
)

// Terminal reports whether no further transitions are possible from the stage.
func (s WorkflowStage) Terminal() bool {
	return s == StageClosed || s == StageAbandoned
}

// Ticket is the aggregate for support requests moving through the resolution
// workflow. Stage, revision and the artifact fields are owned by the
// resolution service; each stage component only ever hands its artifact over
// read-only. Tickets are never deleted; closed ones remain as history.
type Ticket struct {
	ID          string
	Subject     string
	Description string
	ProductID   string
	CustomerID  string
	Stage       WorkflowStage
	Revision    int64
	Findings    *ResearchFindings
	Plan        *Plan
	Execution   *ExecutionRecord
	Summary     *ClosingSummary
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}
