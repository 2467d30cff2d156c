package closing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-resolution/internal/corpus"
	"github.com/spec-kit/ticket-resolution/internal/domain"
	"github.com/spec-kit/ticket-resolution/internal/retrieval"
)

// Closer synthesizes the closing summary of an executed ticket and commits
// it to the history corpus so future research can retrieve it.
type Closer struct {
	store  corpus.Store
	logger *zap.Logger
}

// NewCloser constructs the closer.
func NewCloser(store corpus.Store, logger *zap.Logger) *Closer {
	return &Closer{store: store, logger: logger}
}

// Close builds the summary and appends it to the ticket history. The root
// cause is derived from the strongest research hit and the plan difficulty;
// a human-supplied note always overrides it. Tags are the union of the
// research keyword set and any new terms from the human notes.
func (c *Closer) Close(ticket *domain.Ticket, humanNotes string) (*domain.ClosingSummary, error) {
	now := time.Now().UTC()
	summary := &domain.ClosingSummary{
		TicketID:         ticket.ID,
		ProductID:        ticket.ProductID,
		CustomerID:       ticket.CustomerID,
		ProblemStatement: strings.TrimSpace(ticket.Subject + ": " + ticket.Description),
		RootCause:        c.rootCause(ticket, humanNotes),
		ResolutionSteps:  resolutionSteps(ticket),
		Tags:             mergeTags(ticket, humanNotes),
		ClosedAt:         now,
	}

	if err := c.store.AppendHistory(*summary); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}
	c.logger.Info("closing summary written",
		zap.String("ticket_id", ticket.ID),
		zap.String("root_cause", summary.RootCause),
		zap.Int("tags", len(summary.Tags)))
	return summary, nil
}

func (c *Closer) rootCause(ticket *domain.Ticket, humanNotes string) string {
	if notes := strings.TrimSpace(humanNotes); notes != "" {
		return notes
	}

	difficulty := domain.DifficultyComplex
	if ticket.Plan != nil {
		difficulty = ticket.Plan.Difficulty
	}
	if ticket.Findings != nil {
		if hit := ticket.Findings.TopHit(); hit != nil {
			return fmt.Sprintf("%s (difficulty %s, strongest evidence %s/%s at %.2f)",
				hit.Excerpt, strings.ToLower(string(difficulty)), hit.Source, hit.SourceID, hit.Score)
		}
	}
	return fmt.Sprintf("undetermined; resolved as %s case without citable evidence", strings.ToLower(string(difficulty)))
}

func resolutionSteps(ticket *domain.Ticket) []string {
	if ticket.Plan == nil {
		return nil
	}
	steps := make([]string, 0, len(ticket.Plan.Steps))
	for _, step := range ticket.Plan.Steps {
		steps = append(steps, step.Description)
	}
	return steps
}

// mergeTags unions the research keyword set with new terms from the human
// notes; this is what makes the closed ticket discoverable later.
func mergeTags(ticket *domain.Ticket, humanNotes string) []string {
	seen := make(map[string]struct{})
	var tags []string
	add := func(terms []string) {
		for _, term := range terms {
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
			tags = append(tags, term)
		}
	}

	if ticket.Findings != nil {
		add(ticket.Findings.Keywords)
	}
	if humanNotes != "" {
		add(retrieval.ExtractKeywords("", humanNotes))
	}
	sort.Strings(tags)
	return tags
}
