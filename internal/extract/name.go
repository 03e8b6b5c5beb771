// Package extract holds the field extractors and normalizers shared by
// the source connectors, the deduplicator and the validators.
package extract

import (
	"regexp"
	"strings"
)

// Legal entity suffixes stripped during name normalization. Dotted
// variants first so "s.r.l." does not leave stray dots behind.
var legalSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`\bs\.r\.l\.?\b`),
	regexp.MustCompile(`\bs\.p\.a\.?\b`),
	regexp.MustCompile(`\bs\.a\.s\.?\b`),
	regexp.MustCompile(`\bs\.n\.c\.?\b`),
	regexp.MustCompile(`\bs\.s\.?\b`),
	regexp.MustCompile(`\bsrl\b`),
	regexp.MustCompile(`\bspa\b`),
	regexp.MustCompile(`\bsas\b`),
	regexp.MustCompile(`\bsnc\b`),
	regexp.MustCompile(`\bgmbh\b`),
	regexp.MustCompile(`\bltd\.?\b`),
	regexp.MustCompile(`\bllc\.?\b`),
	regexp.MustCompile(`\binc\.?\b`),
	regexp.MustCompile(`\bcorp\.?\b`),
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// NormalizeCompanyName lowercases a company name, strips legal entity
// suffixes and punctuation, and collapses whitespace. Two businesses
// that normalize to the same string are treated as the same name by
// the deduplicator.
func NormalizeCompanyName(name string) string {
	if name == "" {
		return ""
	}
	normalized := strings.ToLower(name)
	for _, suffix := range legalSuffixes {
		normalized = suffix.ReplaceAllString(normalized, "")
	}
	normalized = nonWord.ReplaceAllString(normalized, " ")
	return strings.Join(strings.Fields(normalized), " ")
}

// NormalizeForMatching reduces text to lowercase word tokens for
// keyword comparison.
func NormalizeForMatching(text string) string {
	if text == "" {
		return ""
	}
	cleaned := nonWord.ReplaceAllString(strings.ToLower(text), " ")
	return strings.Join(strings.Fields(cleaned), " ")
}

// Similarity returns the Jaccard similarity of the word sets of two
// texts, in [0, 1].
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	setA := tokenSet(NormalizeForMatching(a))
	setB := tokenSet(NormalizeForMatching(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		out[tok] = struct{}{}
	}
	return out
}
