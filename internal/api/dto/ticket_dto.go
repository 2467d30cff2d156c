package dto

import (
	"time"

	"github.com/spec-kit/ticket-resolution/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	ProductID   string `json:"product_id"`
	CustomerID  string `json:"customer_id"`
}

// DispositionRequest carries the human decision on a pending plan.
type DispositionRequest struct {
	Decision string `json:"decision"`
	Feedback string `json:"feedback"`
}

// ExecutionRequest records one executed plan step.
type ExecutionRequest struct {
	StepSeq int    `json:"step_seq"`
	Kind    string `json:"kind"`
}

// CloseRequest payload.
type CloseRequest struct {
	Notes string `json:"notes"`
}

// TicketSummary response.
type TicketSummary struct {
	ID         string               `json:"id"`
	Subject    string               `json:"subject"`
	ProductID  string               `json:"product_id"`
	CustomerID string               `json:"customer_id"`
	Stage      domain.WorkflowStage `json:"stage"`
	Revision   int64                `json:"revision"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info including workflow artifacts.
type TicketDetailResponse struct {
	ID          string                   `json:"id"`
	Subject     string                   `json:"subject"`
	Description string                   `json:"description"`
	ProductID   string                   `json:"product_id"`
	CustomerID  string                   `json:"customer_id"`
	Stage       domain.WorkflowStage     `json:"stage"`
	Revision    int64                    `json:"revision"`
	Findings    *FindingsResponse        `json:"findings,omitempty"`
	Plan        *PlanResponse            `json:"plan,omitempty"`
	Execution   []ExecutionEntryResponse `json:"execution,omitempty"`
	Summary     *domain.ClosingSummary   `json:"summary,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
	ClosedAt    *time.Time               `json:"closed_at,omitempty"`
}

// FindingsResponse groups research hits by source.
type FindingsResponse struct {
	Keywords []string           `json:"keywords"`
	Degraded bool               `json:"degraded"`
	Groups   []HitGroupResponse `json:"groups"`
}

// HitGroupResponse lists hits from one knowledge source.
type HitGroupResponse struct {
	Source    domain.SourceKind `json:"source"`
	Available bool              `json:"available"`
	Hits      []HitResponse     `json:"hits"`
}

// HitResponse is a single provenance-tagged search hit.
type HitResponse struct {
	Source       domain.SourceKind `json:"source"`
	SourceID     string            `json:"source_id"`
	Excerpt      string            `json:"excerpt"`
	Score        float64           `json:"score"`
	MatchedTerms []string          `json:"matched_terms"`
}

// PlanResponse is the approval-gated resolution plan.
type PlanResponse struct {
	Difficulty domain.DifficultyRating `json:"difficulty"`
	Approval   domain.ApprovalState    `json:"approval"`
	Narrative  string                  `json:"narrative,omitempty"`
	Feedback   []string                `json:"feedback,omitempty"`
	Revisions  int                     `json:"revisions"`
	Steps      []PlanStepResponse      `json:"steps"`
}

// PlanStepResponse is one ordered plan step.
type PlanStepResponse struct {
	Seq         int              `json:"seq"`
	Description string           `json:"description"`
	Actor       domain.PlanActor `json:"actor"`
	Effort      string           `json:"effort"`
	EvidenceID  string           `json:"evidence_id,omitempty"`
}

// ExecutionEntryResponse is one recorded execution artifact.
type ExecutionEntryResponse struct {
	StepSeq   int                 `json:"step_seq"`
	Kind      domain.ArtifactKind `json:"kind"`
	Body      string              `json:"body"`
	CreatedAt time.Time           `json:"created_at"`
}
