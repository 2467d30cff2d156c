package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-resolution/internal/domain"
)

func TestNextHappyPath(t *testing.T) {
	stage := domain.StageResearch

	stage, err := Next(stage, EventResearchCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.StagePlanPending, stage)

	stage, err = Next(stage, EventPlanApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecuting, stage)

	stage, err = Next(stage, EventClosed)
	require.NoError(t, err)
	assert.Equal(t, domain.StageClosed, stage)
	assert.True(t, stage.Terminal())
}

func TestNextRejectionCycleRepeats(t *testing.T) {
	stage := domain.StagePlanPending

	for i := 0; i < 3; i++ {
		var err error
		stage, err = Next(stage, EventPlanRejected)
		require.NoError(t, err)
		assert.Equal(t, domain.StagePlanRejected, stage)

		stage, err = Next(stage, EventPlanRevised)
		require.NoError(t, err)
		assert.Equal(t, domain.StagePlanRevised, stage)

		stage, err = Next(stage, EventPlanResubmitted)
		require.NoError(t, err)
		assert.Equal(t, domain.StagePlanPending, stage)
	}

	stage, err := Next(stage, EventPlanApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecuting, stage)
}

// Executing is only reachable through an approval out of plan_pending.
func TestExecutingRequiresApproval(t *testing.T) {
	for _, stage := range []domain.WorkflowStage{
		domain.StageResearch,
		domain.StagePlanRejected,
		domain.StagePlanRevised,
		domain.StageClosed,
		domain.StageAbandoned,
	} {
		_, err := Next(stage, EventPlanApproved)
		assert.Error(t, err, "stage %s must not approve", stage)
		assert.True(t, IsIllegalTransition(err))
	}
}

func TestNextIllegalTransitions(t *testing.T) {
	cases := []struct {
		stage domain.WorkflowStage
		event Event
	}{
		{domain.StageResearch, EventClosed},
		{domain.StageResearch, EventPlanRejected},
		{domain.StagePlanPending, EventResearchCompleted},
		{domain.StagePlanPending, EventClosed},
		{domain.StagePlanRejected, EventPlanApproved},
		{domain.StagePlanRevised, EventPlanApproved},
		{domain.StageExecuting, EventResearchCompleted},
		{domain.StageClosed, EventClosed},
		{domain.StageAbandoned, EventResearchCompleted},
	}

	for _, tc := range cases {
		next, err := Next(tc.stage, tc.event)
		require.Error(t, err, "event %s in stage %s", tc.event, tc.stage)

		var te *TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, tc.stage, te.From)
		assert.Equal(t, tc.event, te.Event)
		assert.Equal(t, tc.stage, next, "stage must not move on an illegal transition")
	}
}

func TestAbandonFromAnyActiveStage(t *testing.T) {
	active := []domain.WorkflowStage{
		domain.StageResearch,
		domain.StagePlanPending,
		domain.StagePlanRejected,
		domain.StagePlanRevised,
		domain.StageExecuting,
	}
	for _, stage := range active {
		assert.True(t, CanAbandon(stage))
		next, err := Next(stage, EventAbandoned)
		require.NoError(t, err, "stage %s", stage)
		assert.Equal(t, domain.StageAbandoned, next)
	}

	for _, stage := range []domain.WorkflowStage{domain.StageClosed, domain.StageAbandoned} {
		assert.False(t, CanAbandon(stage))
		_, err := Next(stage, EventAbandoned)
		assert.True(t, IsIllegalTransition(err))
	}
}

func TestIsIllegalTransition(t *testing.T) {
	assert.False(t, IsIllegalTransition(nil))
	assert.False(t, IsIllegalTransition(ErrStaleRevision))
	assert.True(t, IsIllegalTransition(&TransitionError{From: domain.StageClosed, Event: EventClosed}))
}
