package workflow

import (
	"errors"
	"fmt"

	"github.com/spec-kit/ticket-resolution/internal/domain"
)

// Sentinel errors for workflow invariant violations. These are structural
// failures surfaced to the caller, never retried automatically.
var (
	// ErrRetrievalFailed marks a total retrieval failure: every source was
	// unavailable. The ticket stays in research and the caller may retry.
	ErrRetrievalFailed = errors.New("retrieval failed for all sources")

	// ErrIncompletePlan marks a close attempt while plan steps are still
	// missing execution entries.
	ErrIncompletePlan = errors.New("plan has steps without execution entries")

	// ErrDuplicateClose marks a close attempt on an already terminal ticket.
	ErrDuplicateClose = errors.New("ticket is already closed")

	// ErrStaleRevision marks an update against an outdated ticket snapshot.
	// The caller must reload the ticket and retry.
	ErrStaleRevision = errors.New("ticket revision is stale")
)

// TransitionError names the offending (stage, event) pair of an illegal
// transition attempt.
type TransitionError struct {
	From  domain.WorkflowStage
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition: event %q in stage %q", e.Event, e.From)
}

// IsIllegalTransition reports whether err is a TransitionError.
func IsIllegalTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
