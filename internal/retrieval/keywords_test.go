package retrieval

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywordsNormalizes(t *testing.T) {
	keywords := ExtractKeywords("GW-300", "GW-300 liefert nur 0,8 bar, Pfeifgeräusch, Saughöhe 2m")

	assert.Contains(t, keywords, "gw-300")
	assert.Contains(t, keywords, "bar")
	assert.Contains(t, keywords, "pfeifgeräusch")
	assert.Contains(t, keywords, "saughöhe")
	assert.Contains(t, keywords, "2m")

	// "liefert" and "nur" are stopwords, "0,8" splits into sub-length tokens.
	assert.NotContains(t, keywords, "liefert")
	assert.NotContains(t, keywords, "nur")
	assert.NotContains(t, keywords, "0")
	assert.NotContains(t, keywords, "8")

	assert.True(t, sort.StringsAreSorted(keywords))
}

func TestExtractKeywordsStopwordsBothLanguages(t *testing.T) {
	// "an" and "in" are function words in German and English alike and
	// must be filtered exactly once each.
	keywords := ExtractKeywords("", "an Druck in the pipe an der Pumpe")
	assert.Equal(t, []string{"druck", "pipe", "pumpe"}, keywords)
}

func TestExtractKeywordsDeduplicates(t *testing.T) {
	keywords := ExtractKeywords("GW-300", "gw-300 GW-300 Pumpe pumpe PUMPE")
	assert.Equal(t, []string{"gw-300", "pumpe"}, keywords)
}

func TestExtractKeywordsWithoutProduct(t *testing.T) {
	keywords := ExtractKeywords("", "Dichtung undicht")
	assert.Equal(t, []string{"dichtung", "undicht"}, keywords)
}

func TestExtractKeywordsEmptyInput(t *testing.T) {
	assert.Empty(t, ExtractKeywords("", ""))
	assert.Empty(t, ExtractKeywords("", "der die das und bei"))
}
