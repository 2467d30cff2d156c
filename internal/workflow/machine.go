package workflow

import "github.com/spec-kit/ticket-resolution/internal/domain"

// Event drives stage transitions.
type Event string

const (
	EventResearchCompleted Event = "research_completed"
	EventPlanApproved      Event = "plan_approved"
	EventPlanRejected      Event = "plan_rejected"
	EventPlanRevised       Event = "plan_revised"
	EventPlanResubmitted   Event = "plan_resubmitted"
	EventClosed            Event = "closed"
	EventAbandoned         Event = "abandoned"
)

// transitions is the full stage graph. Research and close are
// non-reentrant; the rejected/revised/pending plan cycle may repeat any
// number of times before approval. Entering the executing stage is only
// possible through an explicit approval from plan_pending, which is the
// single mandatory human checkpoint.
var transitions = map[domain.WorkflowStage]map[Event]domain.WorkflowStage{
	domain.StageResearch: {
		EventResearchCompleted: domain.StagePlanPending,
	},
	domain.StagePlanPending: {
		EventPlanApproved: domain.StageExecuting,
		EventPlanRejected: domain.StagePlanRejected,
	},
	domain.StagePlanRejected: {
		EventPlanRevised: domain.StagePlanRevised,
	},
	domain.StagePlanRevised: {
		EventPlanResubmitted: domain.StagePlanPending,
	},
	domain.StageExecuting: {
		EventClosed: domain.StageClosed,
	},
}

// Next is a pure function from (stage, event) to the successor stage. It
// returns a TransitionError naming the offending pair for any edge not in
// the graph; illegal transitions are never silently ignored.
func Next(current domain.WorkflowStage, event Event) (domain.WorkflowStage, error) {
	if event == EventAbandoned {
		if !CanAbandon(current) {
			return current, &TransitionError{From: current, Event: event}
		}
		return domain.StageAbandoned, nil
	}
	if next, ok := transitions[current][event]; ok {
		return next, nil
	}
	return current, &TransitionError{From: current, Event: event}
}

// CanAbandon reports whether the stage allows abandonment.
func CanAbandon(current domain.WorkflowStage) bool {
	return !current.Terminal()
}
