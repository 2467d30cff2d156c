package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-resolution/internal/assist"
	"github.com/spec-kit/ticket-resolution/internal/closing"
	"github.com/spec-kit/ticket-resolution/internal/corpus"
	"github.com/spec-kit/ticket-resolution/internal/domain"
	"github.com/spec-kit/ticket-resolution/internal/events"
	"github.com/spec-kit/ticket-resolution/internal/planning"
	"github.com/spec-kit/ticket-resolution/internal/repository"
	"github.com/spec-kit/ticket-resolution/internal/retrieval"
	"github.com/spec-kit/ticket-resolution/internal/workflow"
)

func seedStore() *corpus.MemoryStore {
	return corpus.NewMemoryStore(
		[]domain.CustomerRecord{
			{ID: "C-ACME", Name: "Acme Anlagenbau GmbH", Aliases: []string{"Acme"}, CustomerSince: time.Date(2019, 3, 12, 0, 0, 0, 0, time.UTC)},
		},
		[]domain.ProductRecord{
			{SKU: "GW-300", Name: "Grosswasser GW-300", Aliases: []string{"GW300"}},
		},
		[]domain.ManualSection{
			{ID: "GW-300#01", ProductID: "GW-300", Title: "Technische Daten", Body: "Nennförderdruck 2,5 bar."},
			{ID: "GW-300#02", ProductID: "GW-300", Title: "Aufstellung und Saughöhe", Body: "Saughöhe über 1,5m führt zu Kavitation und Pfeifgeräusch."},
		},
		[]domain.ClosingSummary{
			{TicketID: "T-OLD1", ProductID: "GW-300", ProblemStatement: "GW-300 Druckabfall durch Kavitation", RootCause: "Saughöhe zu gross", Tags: []string{"gw-300", "saughöhe"}},
		},
	)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	types := make([]events.EventType, 0, len(d.events))
	for _, event := range d.events {
		types = append(types, event.Type)
	}
	return types
}

func newTestService(store corpus.Store, dispatcher events.Dispatcher) *ResolutionService {
	return newTestServiceWithRepo(store, dispatcher, repository.NewMemoryTicketRepository())
}

func newTestServiceWithRepo(store corpus.Store, dispatcher events.Dispatcher, repo repository.TicketRepository) *ResolutionService {
	logger := zap.NewNop()
	return NewResolutionService(ResolutionDependencies{
		TicketRepo: repo,
		Engine:     retrieval.NewEngine(store, logger),
		Builder:    planning.NewBuilder(),
		Closer:     closing.NewCloser(store, logger),
		Drafter:    assist.NewStubDrafter(),
		Dispatcher: dispatcher,
		Logger:     logger,
	})
}

// staleOnceRepo fails the next Update with ErrStaleRevision when armed,
// simulating a concurrent writer winning the compare-and-swap.
type staleOnceRepo struct {
	repository.TicketRepository
	armed bool
}

func (r *staleOnceRepo) Update(ctx context.Context, ticket *domain.Ticket, expectedRevision int64) error {
	if r.armed {
		r.armed = false
		return fmt.Errorf("%w: ticket %s expected revision %d", workflow.ErrStaleRevision, ticket.ID, expectedRevision)
	}
	return r.TicketRepository.Update(ctx, ticket, expectedRevision)
}

func intake(t *testing.T, svc *ResolutionService) *domain.Ticket {
	t.Helper()
	ticket, err := svc.Intake(context.Background(), IntakeInput{
		Subject:     "GW-300 liefert nur 0,8 bar",
		Description: "Pfeifgeräusch, Saughöhe 2m",
		ProductID:   "GW-300",
		CustomerID:  "C-ACME",
	})
	require.NoError(t, err)
	return ticket
}

func executeAllSteps(t *testing.T, svc *ResolutionService, ticketID string) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	ticket, err := svc.GetTicket(ctx, ticketID)
	require.NoError(t, err)
	for _, step := range ticket.Plan.Steps {
		ticket, err = svc.RecordExecution(ctx, ticketID, step.Seq, domain.ArtifactInternalNote)
		require.NoError(t, err)
	}
	return ticket
}

func TestFullResolutionLifecycle(t *testing.T) {
	store := seedStore()
	dispatcher := &recordingDispatcher{}
	svc := newTestService(store, dispatcher)
	ctx := context.Background()

	ticket := intake(t, svc)
	assert.Equal(t, domain.StageResearch, ticket.Stage)
	assert.Equal(t, int64(1), ticket.Revision)
	assert.NotEmpty(t, ticket.ID)

	ticket, err := svc.RunResearch(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StagePlanPending, ticket.Stage)
	assert.Equal(t, int64(2), ticket.Revision)
	require.NotNil(t, ticket.Findings)
	require.NotNil(t, ticket.Plan)
	assert.Equal(t, domain.ApprovalPending, ticket.Plan.Approval)
	assert.NotEmpty(t, ticket.Plan.Steps)

	ticket, err = svc.SubmitDisposition(ctx, ticket.ID, DispositionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecuting, ticket.Stage)
	assert.Equal(t, domain.ApprovalApproved, ticket.Plan.Approval)
	require.NotNil(t, ticket.Execution)

	ticket = executeAllSteps(t, svc, ticket.ID)
	assert.True(t, ticket.Execution.Covers(ticket.Plan))
	for _, entry := range ticket.Execution.Entries {
		assert.NotEmpty(t, entry.Body)
	}

	ticket, err = svc.CloseTicket(ctx, ticket.ID, "Kavitation durch Saughöhe bestätigt")
	require.NoError(t, err)
	assert.Equal(t, domain.StageClosed, ticket.Stage)
	require.NotNil(t, ticket.Summary)
	assert.Equal(t, "Kavitation durch Saughöhe bestätigt", ticket.Summary.RootCause)
	require.NotNil(t, ticket.ClosedAt)

	// The closing summary is immediately part of the searchable corpus.
	assert.NoError(t, store.Resolve(domain.SourceHistory, ticket.ID))

	types := dispatcher.types()
	assert.Contains(t, types, events.EventTicketIntake)
	assert.Contains(t, types, events.EventResearchCompleted)
	assert.Contains(t, types, events.EventPlanAwaitingApproval)
	assert.Contains(t, types, events.EventPlanApproved)
	assert.Contains(t, types, events.EventExecutionRecorded)
	assert.Contains(t, types, events.EventTicketClosed)
}

func TestRunResearchOnlyFromResearchStage(t *testing.T) {
	svc := newTestService(seedStore(), &recordingDispatcher{})
	ctx := context.Background()

	ticket := intake(t, svc)
	_, err := svc.RunResearch(ctx, ticket.ID)
	require.NoError(t, err)

	_, err = svc.RunResearch(ctx, ticket.ID)
	assert.True(t, workflow.IsIllegalTransition(err))
}

func TestApprovalGateBlocksExecutionAndClose(t *testing.T) {
	svc := newTestService(seedStore(), &recordingDispatcher{})
	ctx := context.Background()

	ticket := intake(t, svc)
	_, err := svc.RunResearch(ctx, ticket.ID)
	require.NoError(t, err)

	_, err = svc.RecordExecution(ctx, ticket.ID, 1, domain.ArtifactInternalNote)
	assert.True(t, workflow.IsIllegalTransition(err), "no execution before approval")

	_, err = svc.CloseTicket(ctx, ticket.ID, "")
	assert.True(t, workflow.IsIllegalTransition(err), "no close before approval")
}

func TestRejectionCycleReturnsToPending(t *testing.T) {
	svc := newTestService(seedStore(), &recordingDispatcher{})
	ctx := context.Background()

	ticket := intake(t, svc)
	_, err := svc.RunResearch(ctx, ticket.ID)
	require.NoError(t, err)

	ticket, err = svc.SubmitDisposition(ctx, ticket.ID, DispositionRejected, "Reihenfolge umdrehen")
	require.NoError(t, err)
	assert.Equal(t, domain.StagePlanPending, ticket.Stage)
	assert.Equal(t, domain.ApprovalPending, ticket.Plan.Approval)
	assert.Equal(t, 1, ticket.Plan.Revisions)
	assert.Equal(t, []string{"Reihenfolge umdrehen"}, ticket.Plan.Feedback)

	// A second rejection keeps cycling; approval still works afterwards.
	ticket, err = svc.SubmitDisposition(ctx, ticket.ID, DispositionRejected, "Immer noch falsch")
	require.NoError(t, err)
	assert.Equal(t, 2, ticket.Plan.Revisions)

	ticket, err = svc.SubmitDisposition(ctx, ticket.ID, DispositionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecuting, ticket.Stage)
}

func TestDispositionOutsidePendingStage(t *testing.T) {
	svc := newTestService(seedStore(), &recordingDispatcher{})
	ctx := context.Background()

	ticket := intake(t, svc)
	_, err := svc.SubmitDisposition(ctx, ticket.ID, DispositionApproved, "")
	assert.True(t, workflow.IsIllegalTransition(err))

	_, err = svc.SubmitDisposition(ctx, ticket.ID, Disposition("MAYBE"), "")
	assert.Error(t, err)
}

func TestCloseRequiresCompletePlan(t *testing.T) {
	svc := newTestService(seedStore(), &recordingDispatcher{})
	ctx := context.Background()

	ticket := intake(t, svc)
	_, err := svc.RunResearch(ctx, ticket.ID)
	require.NoError(t, err)
	ticket, err = svc.SubmitDisposition(ctx, ticket.ID, DispositionApproved, "")
	require.NoError(t, err)

	// Execute only the first step.
	_, err = svc.RecordExecution(ctx, ticket.ID, ticket.Plan.Steps[0].Seq, domain.ArtifactCustomerMessage)
	require.NoError(t, err)

	_, err = svc.CloseTicket(ctx, ticket.ID, "")
	assert.ErrorIs(t, err, workflow.ErrIncompletePlan)

	loaded, err := svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecuting, loaded.Stage, "failed close leaves the stage untouched")
}

func TestCloseIsIdempotentOnce(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &recordingDispatcher{})
	ctx := context.Background()

	ticket := intake(t, svc)
	_, err := svc.RunResearch(ctx, ticket.ID)
	require.NoError(t, err)
	_, err = svc.SubmitDisposition(ctx, ticket.ID, DispositionApproved, "")
	require.NoError(t, err)
	executeAllSteps(t, svc, ticket.ID)

	_, err = svc.CloseTicket(ctx, ticket.ID, "")
	require.NoError(t, err)

	_, err = svc.CloseTicket(ctx, ticket.ID, "")
	assert.ErrorIs(t, err, workflow.ErrDuplicateClose)

	history, err := store.SearchHistory("")
	require.NoError(t, err)
	assert.Len(t, history, 2, "seed entry plus exactly one write-back")
}

func TestCloseRetryAfterStaleCommit(t *testing.T) {
	store := seedStore()
	repo := &staleOnceRepo{TicketRepository: repository.NewMemoryTicketRepository()}
	svc := newTestServiceWithRepo(store, &recordingDispatcher{}, repo)
	ctx := context.Background()

	ticket := intake(t, svc)
	_, err := svc.RunResearch(ctx, ticket.ID)
	require.NoError(t, err)
	_, err = svc.SubmitDisposition(ctx, ticket.ID, DispositionApproved, "")
	require.NoError(t, err)
	executeAllSteps(t, svc, ticket.ID)

	repo.armed = true
	_, err = svc.CloseTicket(ctx, ticket.ID, "Kavitation bestätigt")
	require.ErrorIs(t, err, workflow.ErrStaleRevision)

	loaded, err := svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecuting, loaded.Stage)

	// The retry must converge even though the write-back already landed.
	closed, err := svc.CloseTicket(ctx, ticket.ID, "Kavitation bestätigt")
	require.NoError(t, err)
	assert.Equal(t, domain.StageClosed, closed.Stage)

	history, err := store.SearchHistory("")
	require.NoError(t, err)
	assert.Len(t, history, 2, "seed entry plus exactly one write-back across both attempts")
}

func TestFailedCommitLeavesNoPartialState(t *testing.T) {
	repo := &staleOnceRepo{TicketRepository: repository.NewMemoryTicketRepository()}
	svc := newTestServiceWithRepo(seedStore(), &recordingDispatcher{}, repo)
	ctx := context.Background()

	ticket := intake(t, svc)
	_, err := svc.RunResearch(ctx, ticket.ID)
	require.NoError(t, err)

	repo.armed = true
	_, err = svc.SubmitDisposition(ctx, ticket.ID, DispositionApproved, "")
	require.ErrorIs(t, err, workflow.ErrStaleRevision)

	loaded, err := svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StagePlanPending, loaded.Stage)
	assert.Equal(t, int64(2), loaded.Revision)
	assert.Equal(t, domain.ApprovalPending, loaded.Plan.Approval, "rolled-back approval must not leak into stored state")
	assert.Nil(t, loaded.Execution)

	// The checkpoint still works once the conflict clears.
	_, err = svc.SubmitDisposition(ctx, ticket.ID, DispositionApproved, "")
	require.NoError(t, err)
}

func TestRecordExecutionOutOfOrderKeepsPlanOrder(t *testing.T) {
	svc := newTestService(seedStore(), &recordingDispatcher{})
	ctx := context.Background()

	ticket := intake(t, svc)
	_, err := svc.RunResearch(ctx, ticket.ID)
	require.NoError(t, err)
	ticket, err = svc.SubmitDisposition(ctx, ticket.ID, DispositionApproved, "")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(ticket.Plan.Steps), 2)

	// Record the last step first.
	last := ticket.Plan.Steps[len(ticket.Plan.Steps)-1].Seq
	first := ticket.Plan.Steps[0].Seq
	_, err = svc.RecordExecution(ctx, ticket.ID, last, domain.ArtifactInternalNote)
	require.NoError(t, err)
	ticket, err = svc.RecordExecution(ctx, ticket.ID, first, domain.ArtifactInternalNote)
	require.NoError(t, err)

	seqs := make([]int, 0, len(ticket.Execution.Entries))
	for _, entry := range ticket.Execution.Entries {
		seqs = append(seqs, entry.StepSeq)
	}
	assert.Equal(t, []int{first, last}, seqs)
}

func TestRecordExecutionUnknownStep(t *testing.T) {
	svc := newTestService(seedStore(), &recordingDispatcher{})
	ctx := context.Background()

	ticket := intake(t, svc)
	_, err := svc.RunResearch(ctx, ticket.ID)
	require.NoError(t, err)
	_, err = svc.SubmitDisposition(ctx, ticket.ID, DispositionApproved, "")
	require.NoError(t, err)

	_, err = svc.RecordExecution(ctx, ticket.ID, 99, domain.ArtifactInternalNote)
	assert.Error(t, err)
}

func TestAbandonSkipsWriteBack(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &recordingDispatcher{})
	ctx := context.Background()

	ticket := intake(t, svc)
	_, err := svc.RunResearch(ctx, ticket.ID)
	require.NoError(t, err)

	ticket, err = svc.Abandon(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageAbandoned, ticket.Stage)

	history, err := store.SearchHistory("")
	require.NoError(t, err)
	assert.Len(t, history, 1, "abandonment must not add to the corpus")

	_, err = svc.Abandon(ctx, ticket.ID)
	assert.True(t, workflow.IsIllegalTransition(err))

	_, err = svc.CloseTicket(ctx, ticket.ID, "")
	assert.ErrorIs(t, err, workflow.ErrDuplicateClose)
}

func TestRetrievalFailureKeepsTicketInResearch(t *testing.T) {
	svc := newTestService(unavailableStore{}, &recordingDispatcher{})
	ctx := context.Background()

	ticket := intake(t, svc)
	_, err := svc.RunResearch(ctx, ticket.ID)
	assert.ErrorIs(t, err, workflow.ErrRetrievalFailed)

	loaded, err := svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageResearch, loaded.Stage)
	assert.Equal(t, int64(1), loaded.Revision)
}

type unavailableStore struct{}

func (unavailableStore) LookupDirectory() ([]corpus.DirectoryRecord, error) {
	return nil, assert.AnError
}
func (unavailableStore) SearchHistory(string) ([]domain.ClosingSummary, error) {
	return nil, assert.AnError
}
func (unavailableStore) LookupManual(string) ([]domain.ManualSection, error) {
	return nil, assert.AnError
}
func (unavailableStore) AppendHistory(domain.ClosingSummary) error { return assert.AnError }
func (unavailableStore) Resolve(domain.SourceKind, string) error   { return assert.AnError }
