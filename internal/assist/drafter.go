package assist

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-resolution/internal/config"
	"github.com/spec-kit/ticket-resolution/internal/domain"
)

// DraftKind selects what kind of text the capability should produce.
type DraftKind string

const (
	DraftCustomerMessage DraftKind = "customer_message"
	DraftInternalNote    DraftKind = "internal_note"
	DraftPlanNarrative   DraftKind = "plan_narrative"
)

// DraftContext carries the structured inputs for a draft. The produced
// text is treated as opaque; nothing in the core parses it.
type DraftContext struct {
	Ticket   *domain.Ticket
	Step     *domain.PlanStep
	Findings *domain.ResearchFindings
	Plan     *domain.Plan
	Summary  *domain.ClosingSummary
}

// Drafter is the generative capability boundary. The core consumes it,
// never implements generation itself.
type Drafter interface {
	Draft(ctx context.Context, kind DraftKind, draft DraftContext) (string, error)
}

// New selects the drafter implementation from configuration. Selection is
// by provider name only, never by type inspection.
func New(cfg config.AssistantConfig, logger *zap.Logger) (Drafter, error) {
	switch cfg.Provider {
	case "stub", "":
		return NewStubDrafter(), nil
	case "openai":
		return NewOpenAIDrafter(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", cfg.Provider)
	}
}
