package events

import (
	"time"

	"github.com/spec-kit/ticket-resolution/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketIntake         EventType = "ticket_intake"
	EventResearchCompleted    EventType = "research_completed"
	EventPlanAwaitingApproval EventType = "plan_awaiting_approval"
	EventPlanApproved         EventType = "plan_approved"
	EventPlanRejected         EventType = "plan_rejected"
	EventExecutionRecorded    EventType = "execution_recorded"
	EventTicketClosed         EventType = "ticket_closed"
	EventTicketAbandoned      EventType = "ticket_abandoned"
)

// Event represents a workflow event emitted by the resolution service.
type Event struct {
	ID        string               `json:"id"`
	Type      EventType            `json:"type"`
	TicketID  string               `json:"ticket_id"`
	Stage     domain.WorkflowStage `json:"stage"`
	Timestamp time.Time            `json:"timestamp"`
	Payload   interface{}          `json:"payload"`
}

// ResearchCompletedPayload payload.
type ResearchCompletedPayload struct {
	Keywords  []string                  `json:"keywords"`
	HitCounts map[domain.SourceKind]int `json:"hit_counts"`
	Degraded  bool                      `json:"degraded"`
}

// PlanAwaitingApprovalPayload payload.
type PlanAwaitingApprovalPayload struct {
	Difficulty domain.DifficultyRating `json:"difficulty"`
	StepCount  int                     `json:"step_count"`
	Revisions  int                     `json:"revisions"`
}

// PlanDispositionPayload payload.
type PlanDispositionPayload struct {
	Approval domain.ApprovalState `json:"approval"`
	Feedback string               `json:"feedback,omitempty"`
}

// ExecutionRecordedPayload payload.
type ExecutionRecordedPayload struct {
	StepSeq int                 `json:"step_seq"`
	Kind    domain.ArtifactKind `json:"kind"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	RootCause string   `json:"root_cause"`
	Tags      []string `json:"tags"`
}
