package search

import "strings"

// Stop words dropped from multi-word queries
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// Fragments splits a query into lowercase fragments with surrounding
// punctuation trimmed. Stop words are dropped unless the query consists of
// nothing else. Duplicates are removed; order of first appearance is kept.
func Fragments(query string) []string {
	words := strings.Fields(query)
	all := make([]string, 0, len(words))
	filtered := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned == "" || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		all = append(all, cleaned)
		if !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	if len(filtered) == 0 {
		return all
	}
	return filtered
}
