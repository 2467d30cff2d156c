package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-resolution/internal/assist"
	"github.com/spec-kit/ticket-resolution/internal/closing"
	"github.com/spec-kit/ticket-resolution/internal/domain"
	"github.com/spec-kit/ticket-resolution/internal/events"
	"github.com/spec-kit/ticket-resolution/internal/planning"
	"github.com/spec-kit/ticket-resolution/internal/repository"
	"github.com/spec-kit/ticket-resolution/internal/retrieval"
	"github.com/spec-kit/ticket-resolution/internal/workflow"
)

// ResolutionService drives tickets through the research, plan, execute and
// close stages. It exclusively owns the ticket's stage field and artifact
// list; every mutation rehydrates the ticket from the repository and
// commits with a revision compare-and-swap, so an approval wait survives a
// process restart and concurrent callers surface ErrStaleRevision instead
// of losing updates.
type ResolutionService struct {
	tickets    repository.TicketRepository
	engine     *retrieval.Engine
	builder    *planning.Builder
	closer     *closing.Closer
	drafter    assist.Drafter
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ResolutionDependencies bundles collaborators for the service.
type ResolutionDependencies struct {
	TicketRepo repository.TicketRepository
	Engine     *retrieval.Engine
	Builder    *planning.Builder
	Closer     *closing.Closer
	Drafter    assist.Drafter
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// IntakeInput describes ticket creation payload.
type IntakeInput struct {
	Subject     string
	Description string
	ProductID   string
	CustomerID  string
}

// Disposition is the human decision on a pending plan.
type Disposition string

const (
	DispositionApproved Disposition = "APPROVED"
	DispositionRejected Disposition = "REJECTED"
)

// NewResolutionService constructs the service.
func NewResolutionService(deps ResolutionDependencies) *ResolutionService {
	return &ResolutionService{
		tickets:    deps.TicketRepo,
		engine:     deps.Engine,
		builder:    deps.Builder,
		closer:     deps.Closer,
		drafter:    deps.Drafter,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Intake creates a ticket at the research stage.
func (s *ResolutionService) Intake(ctx context.Context, input IntakeInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		ID:          generateTicketID(),
		Subject:     strings.TrimSpace(input.Subject),
		Description: strings.TrimSpace(input.Description),
		ProductID:   strings.TrimSpace(input.ProductID),
		CustomerID:  strings.TrimSpace(input.CustomerID),
		Stage:       domain.StageResearch,
		Revision:    1,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketIntake,
		TicketID: ticket.ID,
		Stage:    ticket.Stage,
	})
	return ticket, nil
}

// GetTicket rehydrates a ticket by id.
func (s *ResolutionService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, id)
}

// ListTickets returns tickets, optionally filtered by stage.
func (s *ResolutionService) ListTickets(ctx context.Context, stage domain.WorkflowStage, limit, offset int) ([]domain.Ticket, error) {
	return s.tickets.List(ctx, stage, limit, offset)
}

// RunResearch executes the three-source search and, on success or degraded
// coverage, attaches the findings, builds the initial plan and moves the
// ticket to plan_pending. A total retrieval failure keeps the ticket in
// research and surfaces the error to the caller for retry.
func (s *ResolutionService) RunResearch(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Stage != domain.StageResearch {
		return nil, &workflow.TransitionError{From: ticket.Stage, Event: workflow.EventResearchCompleted}
	}

	findings, err := s.engine.Search(ctx, ticket)
	if err != nil {
		// Stage unchanged: research may be retried once the corpus recovers.
		return nil, err
	}

	next, err := workflow.Next(ticket.Stage, workflow.EventResearchCompleted)
	if err != nil {
		return nil, err
	}

	ticket.Findings = findings
	ticket.Plan = s.builder.Build(findings, ticket, "")
	s.draftNarrative(ctx, ticket)
	if err := s.commit(ctx, ticket, next); err != nil {
		return nil, err
	}

	hitCounts := make(map[domain.SourceKind]int, len(findings.Groups))
	for _, group := range findings.Groups {
		hitCounts[group.Source] = len(group.Hits)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventResearchCompleted,
		TicketID: ticket.ID,
		Stage:    ticket.Stage,
		Payload: events.ResearchCompletedPayload{
			Keywords:  findings.Keywords,
			HitCounts: hitCounts,
			Degraded:  findings.Degraded(),
		},
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventPlanAwaitingApproval,
		TicketID: ticket.ID,
		Stage:    ticket.Stage,
		Payload: events.PlanAwaitingApprovalPayload{
			Difficulty: ticket.Plan.Difficulty,
			StepCount:  len(ticket.Plan.Steps),
			Revisions:  ticket.Plan.Revisions,
		},
	})
	return ticket, nil
}

// SubmitDisposition records the human decision on a pending plan. Approval
// freezes the plan and enters the executing stage; rejection cycles the
// plan through rejected and revised back to pending with a re-derived
// plan. Any other stage is an illegal transition.
func (s *ResolutionService) SubmitDisposition(ctx context.Context, ticketID string, disposition Disposition, feedback string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	switch disposition {
	case DispositionApproved:
		next, err := workflow.Next(ticket.Stage, workflow.EventPlanApproved)
		if err != nil {
			return nil, err
		}
		ticket.Plan.Approval = domain.ApprovalApproved
		ticket.Execution = &domain.ExecutionRecord{}
		if err := s.commit(ctx, ticket, next); err != nil {
			return nil, err
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventPlanApproved,
			TicketID: ticket.ID,
			Stage:    ticket.Stage,
			Payload:  events.PlanDispositionPayload{Approval: domain.ApprovalApproved},
		})
		return ticket, nil

	case DispositionRejected:
		next, err := workflow.Next(ticket.Stage, workflow.EventPlanRejected)
		if err != nil {
			return nil, err
		}
		ticket.Plan.Approval = domain.ApprovalRejected
		if err := s.commit(ctx, ticket, next); err != nil {
			return nil, err
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventPlanRejected,
			TicketID: ticket.ID,
			Stage:    ticket.Stage,
			Payload:  events.PlanDispositionPayload{Approval: domain.ApprovalRejected, Feedback: feedback},
		})
		return s.revisePlan(ctx, ticket, feedback)

	default:
		return nil, fmt.Errorf("unknown disposition %q", disposition)
	}
}

// revisePlan walks the rejected plan through revision back to pending.
func (s *ResolutionService) revisePlan(ctx context.Context, ticket *domain.Ticket, feedback string) (*domain.Ticket, error) {
	next, err := workflow.Next(ticket.Stage, workflow.EventPlanRevised)
	if err != nil {
		return nil, err
	}
	ticket.Plan = s.builder.Revise(ticket.Plan, ticket.Findings, ticket, feedback)
	ticket.Plan.Approval = domain.ApprovalRevised
	s.draftNarrative(ctx, ticket)
	if err := s.commit(ctx, ticket, next); err != nil {
		return nil, err
	}

	next, err = workflow.Next(ticket.Stage, workflow.EventPlanResubmitted)
	if err != nil {
		return nil, err
	}
	ticket.Plan.Approval = domain.ApprovalPending
	if err := s.commit(ctx, ticket, next); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventPlanAwaitingApproval,
		TicketID: ticket.ID,
		Stage:    ticket.Stage,
		Payload: events.PlanAwaitingApprovalPayload{
			Difficulty: ticket.Plan.Difficulty,
			StepCount:  len(ticket.Plan.Steps),
			Revisions:  ticket.Plan.Revisions,
		},
	})
	return ticket, nil
}

// RecordExecution drafts the artifact for one plan step through the
// generative capability and appends it to the execution record. Entries
// keep plan step order.
func (s *ResolutionService) RecordExecution(ctx context.Context, ticketID string, stepSeq int, kind domain.ArtifactKind) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Stage != domain.StageExecuting {
		return nil, &workflow.TransitionError{From: ticket.Stage, Event: "record_execution"}
	}
	step := ticket.Plan.StepBySeq(stepSeq)
	if step == nil {
		return nil, fmt.Errorf("plan has no step %d", stepSeq)
	}

	draftKind := assist.DraftInternalNote
	if kind == domain.ArtifactCustomerMessage {
		draftKind = assist.DraftCustomerMessage
	}
	body, err := s.drafter.Draft(ctx, draftKind, assist.DraftContext{
		Ticket:   ticket,
		Step:     step,
		Findings: ticket.Findings,
		Plan:     ticket.Plan,
	})
	if err != nil {
		return nil, fmt.Errorf("draft artifact: %w", err)
	}

	if ticket.Execution == nil {
		ticket.Execution = &domain.ExecutionRecord{}
	}
	ticket.Execution.Entries = append(ticket.Execution.Entries, domain.ExecutionEntry{
		StepSeq:   stepSeq,
		Kind:      kind,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	})
	// Entries mirror plan step order regardless of recording order.
	sort.SliceStable(ticket.Execution.Entries, func(i, j int) bool {
		return ticket.Execution.Entries[i].StepSeq < ticket.Execution.Entries[j].StepSeq
	})
	if err := s.commit(ctx, ticket, ticket.Stage); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventExecutionRecorded,
		TicketID: ticket.ID,
		Stage:    ticket.Stage,
		Payload:  events.ExecutionRecordedPayload{StepSeq: stepSeq, Kind: kind},
	})
	return ticket, nil
}

// CloseTicket synthesizes the closing summary, writes it back to the
// corpus and moves the ticket to its terminal closed stage. A plan step
// without an execution entry rejects the close with ErrIncompletePlan; a
// second close on a terminal ticket rejects with ErrDuplicateClose and has
// no side effects.
func (s *ResolutionService) CloseTicket(ctx context.Context, ticketID, humanNotes string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Stage.Terminal() {
		return nil, fmt.Errorf("%w: ticket %s", workflow.ErrDuplicateClose, ticket.ID)
	}

	next, err := workflow.Next(ticket.Stage, workflow.EventClosed)
	if err != nil {
		return nil, err
	}
	if ticket.Execution == nil || !ticket.Execution.Covers(ticket.Plan) {
		return nil, fmt.Errorf("%w: ticket %s", workflow.ErrIncompletePlan, ticket.ID)
	}

	summary, err := s.closer.Close(ticket, humanNotes)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	ticket.Summary = summary
	ticket.ClosedAt = &now
	if err := s.commit(ctx, ticket, next); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticket.ID,
		Stage:    ticket.Stage,
		Payload:  events.TicketClosedPayload{RootCause: summary.RootCause, Tags: summary.Tags},
	})
	return ticket, nil
}

// Abandon terminates a ticket from any non-terminal stage without a
// knowledge write-back.
func (s *ResolutionService) Abandon(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	next, err := workflow.Next(ticket.Stage, workflow.EventAbandoned)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, ticket, next); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAbandoned,
		TicketID: ticket.ID,
		Stage:    ticket.Stage,
	})
	return ticket, nil
}

// commit advances the ticket to the next stage and persists it with the
// revision compare-and-swap.
func (s *ResolutionService) commit(ctx context.Context, ticket *domain.Ticket, next domain.WorkflowStage) error {
	expected := ticket.Revision
	ticket.Stage = next
	ticket.Revision++
	if err := s.tickets.Update(ctx, ticket, expected); err != nil {
		ticket.Revision = expected
		return err
	}
	return nil
}

// draftNarrative attaches a drafted summary to the plan presented for
// approval. The plan itself is already complete; a drafting failure is
// logged and the plan goes out without a narrative.
func (s *ResolutionService) draftNarrative(ctx context.Context, ticket *domain.Ticket) {
	if s.drafter == nil {
		return
	}
	narrative, err := s.drafter.Draft(ctx, assist.DraftPlanNarrative, assist.DraftContext{
		Ticket:   ticket,
		Findings: ticket.Findings,
		Plan:     ticket.Plan,
	})
	if err != nil {
		s.logger.Warn("plan narrative draft failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		return
	}
	ticket.Plan.Narrative = narrative
}

func (s *ResolutionService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketID() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
