package assist

import (
	"context"
	"fmt"
	"strings"
)

// StubDrafter renders deterministic templates over the structured context.
// It keeps the workflow fully reproducible when no live backend is
// configured and is the implementation tests run against.
type StubDrafter struct{}

// NewStubDrafter constructs the stub.
func NewStubDrafter() *StubDrafter {
	return &StubDrafter{}
}

// Draft renders the template for the requested kind.
func (d *StubDrafter) Draft(_ context.Context, kind DraftKind, draft DraftContext) (string, error) {
	switch kind {
	case DraftCustomerMessage:
		return d.customerMessage(draft), nil
	case DraftInternalNote:
		return d.internalNote(draft), nil
	case DraftPlanNarrative:
		return d.planNarrative(draft), nil
	default:
		return "", fmt.Errorf("unknown draft kind %q", kind)
	}
}

func (d *StubDrafter) customerMessage(draft DraftContext) string {
	var b strings.Builder
	b.WriteString("Sehr geehrte Damen und Herren,\n\n")
	if draft.Ticket != nil {
		fmt.Fprintf(&b, "vielen Dank für Ihre Meldung zu %q.\n", draft.Ticket.Subject)
	}
	if draft.Step != nil {
		fmt.Fprintf(&b, "Nächster Schritt: %s\n", draft.Step.Description)
	}
	b.WriteString("\nMit freundlichen Grüßen\nIhr Support-Team")
	return b.String()
}

func (d *StubDrafter) internalNote(draft DraftContext) string {
	var b strings.Builder
	if draft.Ticket != nil {
		fmt.Fprintf(&b, "Ticket %s", draft.Ticket.ID)
		if draft.Ticket.Plan != nil {
			fmt.Fprintf(&b, " (difficulty %s)", draft.Ticket.Plan.Difficulty)
		}
		b.WriteString("\n")
	}
	if draft.Step != nil {
		fmt.Fprintf(&b, "Executed step %d: %s\n", draft.Step.Seq, draft.Step.Description)
		if draft.Step.EvidenceID != "" {
			fmt.Fprintf(&b, "Evidence: %s\n", draft.Step.EvidenceID)
		}
	}
	return strings.TrimSpace(b.String())
}

func (d *StubDrafter) planNarrative(draft DraftContext) string {
	if draft.Plan == nil {
		return "No plan available."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Plan (%s, %d steps):\n", draft.Plan.Difficulty, len(draft.Plan.Steps))
	for _, step := range draft.Plan.Steps {
		fmt.Fprintf(&b, "%d. [%s] %s\n", step.Seq, step.Actor, step.Description)
	}
	return strings.TrimSpace(b.String())
}
