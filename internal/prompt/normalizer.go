// Package prompt normalizes raw task text before estimation and execution.
package prompt

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/costwise/costwise/internal/pricing"
)

var (
	markupRe = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// stopwords is the fixed removal set. Removal is lossy, so it is applied
// only as best-effort compression when no hard truncation is needed.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "of": {},
	"in": {}, "to": {}, "is": {}, "on": {},
}

// Normalize cleans text and bounds it to ceiling tokens (0 = no ceiling).
// The result is guaranteed to estimate to at most the ceiling under
// pricing.EstimateTokens. Pure function; empty input yields empty output.
//
// When the cleaned text already needs a hard truncation, the stopword
// pass is skipped and the prefix is kept intact up to a word boundary.
func Normalize(text string, ceiling int) string {
	clean := Clean(text)
	if clean == "" {
		return ""
	}
	if ceiling > 0 && pricing.EstimateTokens(clean) > ceiling {
		return truncate(clean, ceiling)
	}
	return removeStopwords(clean)
}

// Clean strips markup tags, folds unicode compatibility forms and
// collapses whitespace runs to single spaces.
func Clean(text string) string {
	t := markupRe.ReplaceAllString(text, "")
	t = norm.NFKC.String(t)
	t = spaceRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// CompressionRatio reports normalized length relative to the raw input;
// 1.0 for empty input.
func CompressionRatio(raw, normalized string) float64 {
	if len(raw) == 0 {
		return 1.0
	}
	return float64(len(normalized)) / float64(len(raw))
}

func removeStopwords(text string) string {
	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if _, ok := stopwords[strings.ToLower(w)]; !ok {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// truncate keeps the longest prefix that estimates within ceiling tokens,
// backing off to the last word boundary so the cut never lands mid-token.
// ceiling*4 characters estimate to exactly ceiling tokens.
func truncate(text string, ceiling int) string {
	maxChars := ceiling * 4
	if len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
