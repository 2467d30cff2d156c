package retrieval

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords covers the German and English function words that appear in
// ticket descriptions without carrying search signal.
var stopwords = map[string]struct{}{
	// German
	"der": {}, "die": {}, "das": {}, "und": {}, "oder": {}, "aber": {},
	"ein": {}, "eine": {}, "einen": {}, "einem": {}, "einer": {}, "eines": {},
	"ist": {}, "sind": {}, "war": {}, "wird": {}, "wurde": {}, "werden": {},
	"nicht": {}, "kein": {}, "keine": {}, "nur": {}, "auch": {}, "noch": {},
	"bei": {}, "beim": {}, "mit": {}, "von": {}, "vom": {}, "aus": {},
	"auf": {}, "im": {}, "in": {}, "an": {}, "am": {}, "um": {}, "zu": {},
	"zum": {}, "zur": {}, "nach": {}, "seit": {}, "wir": {}, "sie": {},
	"es": {}, "sich": {}, "hat": {}, "haben": {}, "dass": {}, "wenn": {},
	"sehr": {}, "mehr": {}, "liefert": {}, "bitte": {},
	// English
	"the": {}, "a": {}, "and": {}, "or": {}, "but": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "it": {},
	"its": {}, "of": {}, "on": {}, "at": {}, "to": {}, "for": {}, "with": {},
	"from": {}, "by": {}, "we": {}, "our": {}, "this": {}, "that": {},
	"not": {}, "no": {}, "has": {}, "have": {}, "had": {}, "does": {},
	"do": {}, "please": {}, "only": {}, "very": {},
}

// ExtractKeywords derives the normalized keyword set for one research
// stage: product id plus the description tokens, case-folded, punctuation
// stripped, stop-words removed, deduplicated and sorted. The same set is
// reused unchanged across all three searches so findings stay consistent
// per source.
func ExtractKeywords(productID, description string) []string {
	seen := make(map[string]struct{})
	var keywords []string

	add := func(token string) {
		token = strings.ToLower(strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}))
		if len(token) < 2 {
			return
		}
		if _, stop := stopwords[token]; stop {
			return
		}
		if _, dup := seen[token]; dup {
			return
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
	}

	if productID != "" {
		add(productID)
	}
	for _, token := range strings.FieldsFunc(description, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == ':' || r == '/' || r == '(' || r == ')'
	}) {
		add(token)
	}

	sort.Strings(keywords)
	return keywords
}
