package domain

import "time"

// ArtifactKind distinguishes the outputs produced during execution.
type ArtifactKind string

const (
	ArtifactCustomerMessage ArtifactKind = "CUSTOMER_MESSAGE"
	ArtifactInternalNote    ArtifactKind = "INTERNAL_NOTE"
)

// ExecutionEntry is one produced artifact, tagged with the plan step it
// satisfies.
type ExecutionEntry struct {
	StepSeq   int          `json:"step_seq"`
	Kind      ArtifactKind `json:"kind"`
	Body      string       `json:"body"`
	CreatedAt time.Time    `json:"created_at"`
}

// ExecutionRecord is the execute stage artifact. Entries are appended in
// plan step order and the record becomes immutable once the stage completes.
type ExecutionRecord struct {
	Entries []ExecutionEntry `json:"entries"`
}

// Covers reports whether every plan step has at least one entry.
func (r *ExecutionRecord) Covers(plan *Plan) bool {
	if plan == nil {
		return false
	}
	for _, step := range plan.Steps {
		if !r.hasEntryFor(step.Seq) {
			return false
		}
	}
	return true
}

func (r *ExecutionRecord) hasEntryFor(seq int) bool {
	if r == nil {
		return false
	}
	for _, entry := range r.Entries {
		if entry.StepSeq == seq {
			return true
		}
	}
	return false
}
