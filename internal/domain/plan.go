package domain

// DifficultyRating is the ordinal difficulty estimate derived from findings.
type DifficultyRating string

const (
	DifficultySimple   DifficultyRating = "SIMPLE"
	DifficultyModerate DifficultyRating = "MODERATE"
	DifficultyComplex  DifficultyRating = "COMPLEX"
)

// ApprovalState tracks the human disposition of a plan.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "PENDING"
	ApprovalApproved ApprovalState = "APPROVED"
	ApprovalRejected ApprovalState = "REJECTED"
	ApprovalRevised  ApprovalState = "REVISED"
)

// PlanActor assigns responsibility for a plan step.
type PlanActor string

const (
	ActorSystem PlanActor = "SYSTEM"
	ActorHuman  PlanActor = "HUMAN"
)

// PlanStep is one ordered remediation action.
type PlanStep struct {
	Seq         int       `json:"seq"`
	Description string    `json:"description"`
	Actor       PlanActor `json:"actor"`
	Effort      string    `json:"effort"`
	EvidenceID  string    `json:"evidence_id,omitempty"`
}

// Plan is the plan stage artifact. Approval only ever changes through an
// explicit human disposition recorded by the resolution service; once
// approved the plan is frozen.
type Plan struct {
	Steps      []PlanStep       `json:"steps"`
	Difficulty DifficultyRating `json:"difficulty"`
	Approval   ApprovalState    `json:"approval"`
	Narrative  string           `json:"narrative,omitempty"`
	Feedback   []string         `json:"feedback,omitempty"`
	Revisions  int              `json:"revisions"`
}

// StepBySeq returns the step with the given sequence number.
func (p *Plan) StepBySeq(seq int) *PlanStep {
	for i := range p.Steps {
		if p.Steps[i].Seq == seq {
			return &p.Steps[i]
		}
	}
	return nil
}
