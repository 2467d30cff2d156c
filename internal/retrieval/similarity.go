package retrieval

import (
	"sort"
	"strings"
)

// Scoring constants. Retrieval must be exact-value reproducible, so these
// are fixed here rather than configurable: three similarity algorithms are
// combined with weights 0.4/0.3/0.3, at least two of the three must reach
// the consensus floor, and mismatched name lengths apply a penalty.
const (
	consensusFloor    = 0.6
	weightRatio       = 0.4
	weightPartial     = 0.3
	weightTokenSort   = 0.3
	penaltyNone       = 1.0
	penaltyModerate   = 0.85
	penaltyStrong     = 0.6
	lengthRatioClose  = 0.7
	lengthRatioRemote = 0.5

	// DirectoryThreshold is the minimum consensus score for a directory hit.
	DirectoryThreshold = 0.75
)

// legalForms lists company suffixes stripped before name comparison.
var legalForms = []string{
	"gmbh & co. kg", "gmbh & co kg", "gmbh", "kgaa", "ohg", "gbr",
	"ag", "kg", "ug", "eg", "ev", "se",
}

// ConsensusScore rates the similarity of two names on [0,1]. Three
// algorithms vote: plain edit-distance ratio, best-window partial ratio
// and token-sort ratio. Fewer than two votes above the floor means no
// consensus and a zero score.
func ConsensusScore(a, b string) float64 {
	a = stripLegalForm(a)
	b = stripLegalForm(b)
	if a == "" || b == "" {
		return 0
	}

	ratio := Ratio(a, b)
	partial := PartialRatio(a, b)
	tokenSort := TokenSortRatio(a, b)

	votes := 0
	for _, s := range []float64{ratio, partial, tokenSort} {
		if s >= consensusFloor {
			votes++
		}
	}
	if votes < 2 {
		return 0
	}

	weighted := ratio*weightRatio + partial*weightPartial + tokenSort*weightTokenSort
	return weighted * lengthPenalty(a, b)
}

// Ratio is the normalized edit-distance similarity of two strings.
func Ratio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// PartialRatio slides the shorter string across the longer one and keeps
// the best window ratio.
func PartialRatio(a, b string) float64 {
	shorter, longer := []rune(strings.ToLower(a)), []rune(strings.ToLower(b))
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}
	best := 0.0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		window := string(longer[i : i+len(shorter)])
		if score := Ratio(string(shorter), window); score > best {
			best = score
		}
	}
	return best
}

// TokenSortRatio compares the strings with their tokens sorted, so word
// order does not matter.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	tokens := strings.Fields(strings.ToLower(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func stripLegalForm(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	for _, form := range legalForms {
		if strings.HasSuffix(lowered, " "+form) {
			return strings.TrimSpace(strings.TrimSuffix(lowered, " "+form))
		}
	}
	return lowered
}

func lengthPenalty(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return penaltyStrong
	}
	ratio := float64(min(la, lb)) / float64(max(la, lb))
	switch {
	case ratio >= lengthRatioClose:
		return penaltyNone
	case ratio >= lengthRatioRemote:
		return penaltyModerate
	default:
		return penaltyStrong
	}
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
