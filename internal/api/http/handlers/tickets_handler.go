package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-resolution/internal/api/dto"
	"github.com/spec-kit/ticket-resolution/internal/domain"
	"github.com/spec-kit/ticket-resolution/internal/service"
	apperrors "github.com/spec-kit/ticket-resolution/pkg/util"
)

// TicketsHandler exposes the resolution workflow over HTTP.
type TicketsHandler struct {
	service *service.ResolutionService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(resolutionService *service.ResolutionService) *TicketsHandler {
	return &TicketsHandler{service: resolutionService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Description) == "" {
		return apperrors.NewValidationError("subject and description required", nil)
	}

	ticket, err := h.service.Intake(c.UserContext(), service.IntakeInput{
		Subject:     req.Subject,
		Description: req.Description,
		ProductID:   req.ProductID,
		CustomerID:  req.CustomerID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	stage := domain.WorkflowStage(strings.TrimSpace(c.Query("stage")))
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)

	tickets, err := h.service.ListTickets(c.UserContext(), stage, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// RunResearch POST /tickets/:id/research.
func (h *TicketsHandler) RunResearch(c *fiber.Ctx) error {
	ticket, err := h.service.RunResearch(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// SubmitDisposition POST /tickets/:id/disposition.
func (h *TicketsHandler) SubmitDisposition(c *fiber.Ctx) error {
	var req dto.DispositionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	decision := service.Disposition(strings.ToUpper(strings.TrimSpace(req.Decision)))
	if decision != service.DispositionApproved && decision != service.DispositionRejected {
		return apperrors.NewValidationError("decision must be APPROVED or REJECTED", nil)
	}

	ticket, err := h.service.SubmitDisposition(c.UserContext(), c.Params("id"), decision, req.Feedback)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// RecordExecution POST /tickets/:id/execution.
func (h *TicketsHandler) RecordExecution(c *fiber.Ctx) error {
	var req dto.ExecutionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	kind := domain.ArtifactKind(strings.ToUpper(strings.TrimSpace(req.Kind)))
	if kind != domain.ArtifactCustomerMessage && kind != domain.ArtifactInternalNote {
		return apperrors.NewValidationError("kind must be CUSTOMER_MESSAGE or INTERNAL_NOTE", nil)
	}
	if req.StepSeq <= 0 {
		return apperrors.NewValidationError("step_seq must be positive", nil)
	}

	ticket, err := h.service.RecordExecution(c.UserContext(), c.Params("id"), req.StepSeq, kind)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	var req dto.CloseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CloseTicket(c.UserContext(), c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// AbandonTicket POST /tickets/:id/abandon.
func (h *TicketsHandler) AbandonTicket(c *fiber.Ctx) error {
	ticket, err := h.service.Abandon(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:         ticket.ID,
		Subject:    ticket.Subject,
		ProductID:  ticket.ProductID,
		CustomerID: ticket.CustomerID,
		Stage:      ticket.Stage,
		Revision:   ticket.Revision,
		CreatedAt:  ticket.CreatedAt,
		UpdatedAt:  ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	resp := dto.TicketDetailResponse{
		ID:          ticket.ID,
		Subject:     ticket.Subject,
		Description: ticket.Description,
		ProductID:   ticket.ProductID,
		CustomerID:  ticket.CustomerID,
		Stage:       ticket.Stage,
		Revision:    ticket.Revision,
		Summary:     ticket.Summary,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
		ClosedAt:    ticket.ClosedAt,
	}
	if ticket.Findings != nil {
		resp.Findings = findingsResponse(ticket.Findings)
	}
	if ticket.Plan != nil {
		resp.Plan = planResponse(ticket.Plan)
	}
	if ticket.Execution != nil {
		entries := make([]dto.ExecutionEntryResponse, 0, len(ticket.Execution.Entries))
		for _, entry := range ticket.Execution.Entries {
			entries = append(entries, dto.ExecutionEntryResponse{
				StepSeq:   entry.StepSeq,
				Kind:      entry.Kind,
				Body:      entry.Body,
				CreatedAt: entry.CreatedAt,
			})
		}
		resp.Execution = entries
	}
	return resp
}

func findingsResponse(findings *domain.ResearchFindings) *dto.FindingsResponse {
	groups := make([]dto.HitGroupResponse, 0, len(findings.Groups))
	for _, group := range findings.Groups {
		hits := make([]dto.HitResponse, 0, len(group.Hits))
		for _, hit := range group.Hits {
			hits = append(hits, dto.HitResponse{
				Source:       hit.Source,
				SourceID:     hit.SourceID,
				Excerpt:      hit.Excerpt,
				Score:        hit.Score,
				MatchedTerms: hit.MatchedTerms,
			})
		}
		groups = append(groups, dto.HitGroupResponse{
			Source:    group.Source,
			Available: group.Available,
			Hits:      hits,
		})
	}
	return &dto.FindingsResponse{
		Keywords: findings.Keywords,
		Degraded: findings.Degraded(),
		Groups:   groups,
	}
}

func planResponse(plan *domain.Plan) *dto.PlanResponse {
	steps := make([]dto.PlanStepResponse, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		steps = append(steps, dto.PlanStepResponse{
			Seq:         step.Seq,
			Description: step.Description,
			Actor:       step.Actor,
			Effort:      step.Effort,
			EvidenceID:  step.EvidenceID,
		})
	}
	return &dto.PlanResponse{
		Difficulty: plan.Difficulty,
		Approval:   plan.Approval,
		Narrative:  plan.Narrative,
		Feedback:   plan.Feedback,
		Revisions:  plan.Revisions,
		Steps:      steps,
	}
}
