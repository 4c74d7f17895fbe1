package registry

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases and strips diacritics so "Café" matches "cafe".
func Normalize(s string) string {
	// Transformers are stateful, so build the chain per call.
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(stripper, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Relevance tiers. Name hits outrank tag hits outrank description hits.
const (
	scoreExactName  = 100
	scoreNamePrefix = 50
	scoreNameSub    = 25
	scoreTag        = 15
	scoreDesc       = 5
)

// matchScore rates how well a record matches the normalized query term.
// Zero means no match.
func matchScore(rec *ContractRecord, term string) int {
	if term == "" {
		return scoreDesc
	}
	name := Normalize(rec.Name)
	switch {
	case name == term:
		return scoreExactName
	case strings.HasPrefix(name, term):
		return scoreNamePrefix
	case strings.Contains(name, term):
		return scoreNameSub
	}
	for _, tag := range rec.Tags {
		if strings.Contains(Normalize(tag), term) {
			return scoreTag
		}
	}
	if strings.Contains(Normalize(rec.Description), term) {
		return scoreDesc
	}
	if strings.Contains(Normalize(rec.ContractID), term) {
		return scoreDesc
	}
	return 0
}
