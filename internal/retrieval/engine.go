package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-resolution/internal/corpus"
	"github.com/spec-kit/ticket-resolution/internal/domain"
	"github.com/spec-kit/ticket-resolution/internal/workflow"
)

const (
	historySameProductBoost  = 0.25
	historySameCustomerBoost = 0.15
	maxHitsPerSource         = 6
	excerptLimit             = 200
)

// Engine runs the three-source search for the research stage. For a fixed
// corpus snapshot the result is fully deterministic.
type Engine struct {
	store  corpus.Store
	logger *zap.Logger
}

// NewEngine constructs the engine.
func NewEngine(store corpus.Store, logger *zap.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

type sourceResult struct {
	hits []domain.SearchHit
	err  error
}

// Search derives the keyword set from the ticket and runs the directory,
// history and manual searches concurrently against the corpus. A source
// that errors or returns nothing contributes an empty group flagged as
// unavailable; only the failure of all three sources aborts the stage.
func (e *Engine) Search(ctx context.Context, ticket *domain.Ticket) (*domain.ResearchFindings, error) {
	keywords := ExtractKeywords(ticket.ProductID, ticket.Subject+" "+ticket.Description)

	var wg sync.WaitGroup
	results := make(map[domain.SourceKind]*sourceResult, len(domain.SourceKinds))
	searches := map[domain.SourceKind]func() ([]domain.SearchHit, error){
		domain.SourceDirectory: func() ([]domain.SearchHit, error) { return e.searchDirectory(keywords) },
		domain.SourceHistory:   func() ([]domain.SearchHit, error) { return e.searchHistory(keywords, ticket) },
		domain.SourceManual:    func() ([]domain.SearchHit, error) { return e.searchManual(keywords, ticket.ProductID) },
	}

	for _, source := range domain.SourceKinds {
		result := &sourceResult{}
		results[source] = result
		search := searches[source]
		wg.Add(1)
		go func() {
			defer wg.Done()
			result.hits, result.err = search()
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failures := 0
	findings := &domain.ResearchFindings{Keywords: keywords}
	for _, source := range domain.SourceKinds {
		result := results[source]
		if result.err != nil {
			failures++
			e.logger.Warn("retrieval source unavailable",
				zap.String("ticket_id", ticket.ID),
				zap.String("source", string(source)),
				zap.Error(result.err))
		}
		hits := e.verified(source, result.hits)
		findings.Groups = append(findings.Groups, domain.HitGroup{
			Source:    source,
			Available: result.err == nil && len(hits) > 0,
			Hits:      hits,
		})
	}

	if failures == len(domain.SourceKinds) {
		return nil, fmt.Errorf("%w: ticket %s", workflow.ErrRetrievalFailed, ticket.ID)
	}
	return findings, nil
}

// verified drops any candidate whose provenance pointer does not resolve
// to a corpus record. No hit without a verifiable (source, id) pointer is
// ever returned.
func (e *Engine) verified(source domain.SourceKind, hits []domain.SearchHit) []domain.SearchHit {
	kept := hits[:0]
	for _, hit := range hits {
		if err := e.store.Resolve(source, hit.SourceID); err != nil {
			e.logger.Warn("discarding hit without resolvable provenance",
				zap.String("source", string(source)),
				zap.String("source_id", hit.SourceID))
			continue
		}
		kept = append(kept, hit)
	}
	return kept
}

func (e *Engine) searchDirectory(keywords []string) ([]domain.SearchHit, error) {
	records, err := e.store.LookupDirectory()
	if err != nil {
		return nil, err
	}

	type scored struct {
		hit   domain.SearchHit
		since int64
	}
	var candidates []scored
	for _, record := range records {
		score, matched := directoryScore(keywords, record)
		if score < DirectoryThreshold {
			continue
		}
		candidates = append(candidates, scored{
			hit: domain.SearchHit{
				Source:       domain.SourceDirectory,
				SourceID:     record.ID,
				Excerpt:      truncate(record.Name, excerptLimit),
				Score:        score,
				MatchedTerms: matched,
			},
			since: record.Since,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].hit.Score != candidates[j].hit.Score {
			return candidates[i].hit.Score > candidates[j].hit.Score
		}
		if candidates[i].since != candidates[j].since {
			return candidates[i].since > candidates[j].since
		}
		return candidates[i].hit.SourceID < candidates[j].hit.SourceID
	})

	hits := make([]domain.SearchHit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, c.hit)
	}
	return capHits(hits), nil
}

// directoryScore is the best consensus score of any keyword against the
// record's name or aliases.
func directoryScore(keywords []string, record corpus.DirectoryRecord) (float64, []string) {
	names := append([]string{record.Name}, record.Aliases...)
	best := 0.0
	var matched []string
	for _, keyword := range keywords {
		keywordBest := 0.0
		for _, name := range names {
			if score := ConsensusScore(keyword, name); score > keywordBest {
				keywordBest = score
			}
		}
		if keywordBest >= DirectoryThreshold {
			matched = append(matched, keyword)
		}
		if keywordBest > best {
			best = keywordBest
		}
	}
	return best, matched
}

func (e *Engine) searchHistory(keywords []string, ticket *domain.Ticket) ([]domain.SearchHit, error) {
	summaries, err := e.store.SearchHistory(ticket.ID)
	if err != nil {
		return nil, err
	}

	var hits []domain.SearchHit
	for _, summary := range summaries {
		text := strings.ToLower(summary.ProblemStatement + " " + summary.RootCause + " " + strings.Join(summary.Tags, " "))
		matched := matchedTerms(keywords, text)
		if len(matched) == 0 {
			continue
		}
		score := float64(len(matched)) / float64(len(keywords))
		if summary.ProductID == ticket.ProductID {
			score += historySameProductBoost
		}
		if summary.CustomerID != "" && summary.CustomerID == ticket.CustomerID {
			score += historySameCustomerBoost
		}
		if score > 1 {
			score = 1
		}
		hits = append(hits, domain.SearchHit{
			Source:       domain.SourceHistory,
			SourceID:     summary.TicketID,
			Excerpt:      truncate(summary.ProblemStatement, excerptLimit),
			Score:        score,
			MatchedTerms: matched,
		})
	}
	sortHits(hits)
	return capHits(hits), nil
}

// searchManual only ever considers sections of the ticket's own product.
func (e *Engine) searchManual(keywords []string, productID string) ([]domain.SearchHit, error) {
	sections, err := e.store.LookupManual(productID)
	if err != nil {
		return nil, err
	}

	var hits []domain.SearchHit
	for _, section := range sections {
		text := strings.ToLower(section.Title + " " + section.Body)
		matched := matchedTerms(keywords, text)
		if len(matched) == 0 {
			continue
		}
		hits = append(hits, domain.SearchHit{
			Source:       domain.SourceManual,
			SourceID:     section.ID,
			Excerpt:      truncate(section.Title+": "+section.Body, excerptLimit),
			Score:        float64(len(matched)) / float64(len(keywords)),
			MatchedTerms: matched,
		})
	}
	sortHits(hits)
	return capHits(hits), nil
}

// matchedTerms returns the keywords found in the lowercased text. The
// product id keyword also matches without its hyphen so "gw-300" finds
// "GW300" style references.
func matchedTerms(keywords []string, text string) []string {
	var matched []string
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) ||
			(strings.Contains(keyword, "-") && strings.Contains(text, strings.ReplaceAll(keyword, "-", ""))) {
			matched = append(matched, keyword)
		}
	}
	return matched
}

func sortHits(hits []domain.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].SourceID < hits[j].SourceID
	})
}

func capHits(hits []domain.SearchHit) []domain.SearchHit {
	if len(hits) > maxHitsPerSource {
		return hits[:maxHitsPerSource]
	}
	return hits
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
