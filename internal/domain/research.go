package domain

// SourceKind identifies which corpus collection a search hit came from.
type SourceKind string

const (
	SourceDirectory SourceKind = "DIRECTORY"
	SourceHistory   SourceKind = "HISTORY"
	SourceManual    SourceKind = "MANUAL"
)

// SourceKinds lists the retrieval sources in their canonical group order.
var SourceKinds = []SourceKind{SourceDirectory, SourceHistory, SourceManual}

// SearchHit is a single scored finding. Source and SourceID must always
// resolve to a retrievable corpus record; the engine discards candidates
// without a verifiable pointer.
type SearchHit struct {
	Source       SourceKind `json:"source"`
	SourceID     string     `json:"source_id"`
	Excerpt      string     `json:"excerpt"`
	Score        float64    `json:"score"`
	MatchedTerms []string   `json:"matched_terms"`
}

// HitGroup collects hits from one source. Available is false when the
// source errored during research; the group then carries no hits but the
// degradation stays visible to the plan and close stages.
type HitGroup struct {
	Source    SourceKind  `json:"source"`
	Available bool        `json:"available"`
	Hits      []SearchHit `json:"hits"`
}

// ResearchFindings is the research stage artifact: the keyword set used for
// all three searches plus one group per source. Immutable once the stage
// completes.
type ResearchFindings struct {
	Keywords []string   `json:"keywords"`
	Groups   []HitGroup `json:"groups"`
}

// Group returns the hit group for the given source.
func (f *ResearchFindings) Group(source SourceKind) *HitGroup {
	for i := range f.Groups {
		if f.Groups[i].Source == source {
			return &f.Groups[i]
		}
	}
	return nil
}

// TopHit returns the highest scoring hit across all groups, or nil when the
// findings are empty.
func (f *ResearchFindings) TopHit() *SearchHit {
	var best *SearchHit
	for i := range f.Groups {
		for j := range f.Groups[i].Hits {
			hit := &f.Groups[i].Hits[j]
			if best == nil || hit.Score > best.Score {
				best = hit
			}
		}
	}
	return best
}

// Degraded reports whether at least one source was unavailable.
func (f *ResearchFindings) Degraded() bool {
	for _, group := range f.Groups {
		if !group.Available {
			return true
		}
	}
	return false
}
