package planning

import (
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-resolution/internal/domain"
)

// simpleHistoryThreshold is the history hit score treated as an identical
// root cause precedent.
const simpleHistoryThreshold = 0.9

// escalationKeywords force a complex rating regardless of findings.
var escalationKeywords = []string{
	"produktionsstopp", "stillstand", "unfall", "verletzung",
	"safety", "leak", "brand", "notfall",
}

// Builder converts research findings into a steppable plan awaiting human
// disposition.
type Builder struct{}

// NewBuilder constructs the builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build derives a plan from the findings. The approval state always starts
// pending; flipping it is strictly the human's decision, recorded by the
// resolution service.
func (b *Builder) Build(findings *domain.ResearchFindings, ticket *domain.Ticket, hint domain.DifficultyRating) *domain.Plan {
	difficulty := b.classify(findings, ticket)
	if hint != "" && rank(hint) > rank(difficulty) {
		difficulty = hint
	}

	plan := &domain.Plan{
		Difficulty: difficulty,
		Approval:   domain.ApprovalPending,
		Steps:      b.deriveSteps(findings, difficulty),
	}
	return plan
}

// Revise re-derives the plan after a rejection, carrying the accumulated
// human feedback forward and resetting approval to pending.
func (b *Builder) Revise(plan *domain.Plan, findings *domain.ResearchFindings, ticket *domain.Ticket, feedback string) *domain.Plan {
	revised := b.Build(findings, ticket, plan.Difficulty)
	revised.Feedback = append(append([]string{}, plan.Feedback...), feedback)
	revised.Revisions = plan.Revisions + 1
	if feedback != "" {
		revised.Steps = append(revised.Steps, domain.PlanStep{
			Seq:         len(revised.Steps) + 1,
			Description: "Address reviewer feedback: " + feedback,
			Actor:       domain.ActorHuman,
			Effort:      "30m",
		})
	}
	return revised
}

// classify applies the rule-based difficulty model: an identical historical
// root cause means simple, matching manual guidance without precedent means
// moderate, neither or an escalation keyword means complex.
func (b *Builder) classify(findings *domain.ResearchFindings, ticket *domain.Ticket) domain.DifficultyRating {
	description := strings.ToLower(ticket.Subject + " " + ticket.Description)
	for _, keyword := range escalationKeywords {
		if strings.Contains(description, keyword) {
			return domain.DifficultyComplex
		}
	}

	if hit := bestHit(findings, domain.SourceHistory); hit != nil && hit.Score >= simpleHistoryThreshold {
		return domain.DifficultySimple
	}
	if hit := bestHit(findings, domain.SourceManual); hit != nil {
		return domain.DifficultyModerate
	}
	return domain.DifficultyComplex
}

// deriveSteps emits one step per distinct remediation action referenced by
// the highest scoring hits, preserving source group order. Complex plans
// always end in a human escalation step.
func (b *Builder) deriveSteps(findings *domain.ResearchFindings, difficulty domain.DifficultyRating) []domain.PlanStep {
	var steps []domain.PlanStep
	add := func(description string, actor domain.PlanActor, effort, evidenceID string) {
		for _, existing := range steps {
			if existing.Description == description {
				return
			}
		}
		steps = append(steps, domain.PlanStep{
			Seq:         len(steps) + 1,
			Description: description,
			Actor:       actor,
			Effort:      effort,
			EvidenceID:  evidenceID,
		})
	}

	if hit := bestHit(findings, domain.SourceDirectory); hit != nil {
		add(fmt.Sprintf("Verify customer and installation details against directory record %s", hit.SourceID),
			domain.ActorSystem, "15m", hit.SourceID)
	}
	if hit := bestHit(findings, domain.SourceHistory); hit != nil {
		add(fmt.Sprintf("Apply the resolution of prior ticket %s (%s)", hit.SourceID, truncateWords(hit.Excerpt, 12)),
			domain.ActorSystem, "1h", hit.SourceID)
	}
	for _, hit := range topHits(findings, domain.SourceManual, 2) {
		add(fmt.Sprintf("Follow manual guidance %s: %s", hit.SourceID, truncateWords(hit.Excerpt, 12)),
			domain.ActorSystem, "1h", hit.SourceID)
	}

	if len(steps) == 0 {
		add("Gather additional diagnostics from the customer", domain.ActorHuman, "1h", "")
	}
	if difficulty == domain.DifficultyComplex {
		add("Escalate to a senior engineer for review", domain.ActorHuman, "2h", "")
	}
	return steps
}

func bestHit(findings *domain.ResearchFindings, source domain.SourceKind) *domain.SearchHit {
	hits := topHits(findings, source, 1)
	if len(hits) == 0 {
		return nil
	}
	return &hits[0]
}

func topHits(findings *domain.ResearchFindings, source domain.SourceKind, limit int) []domain.SearchHit {
	group := findings.Group(source)
	if group == nil || len(group.Hits) == 0 {
		return nil
	}
	if len(group.Hits) < limit {
		limit = len(group.Hits)
	}
	return group.Hits[:limit]
}

func rank(d domain.DifficultyRating) int {
	switch d {
	case domain.DifficultySimple:
		return 1
	case domain.DifficultyModerate:
		return 2
	case domain.DifficultyComplex:
		return 3
	}
	return 0
}

func truncateWords(s string, limit int) string {
	words := strings.Fields(s)
	if len(words) <= limit {
		return strings.TrimSpace(s)
	}
	return strings.Join(words[:limit], " ") + "..."
}
