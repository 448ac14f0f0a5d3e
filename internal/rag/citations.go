package rag

import (
	"regexp"
	"slices"
	"strconv"
)

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// ParseCitations extracts the evidence items a finished answer actually
// referenced via bracketed [n] markers.
//
// Duplicate markers collapse to one citation. Indices that do not match
// any evidence item are silently dropped, never reported as malformed.
// The result is sorted ascending by index; UI rendering depends on that
// ordering.
func ParseCitations(text string, evidence []Evidence) []Citation {
	byIndex := make(map[int]Evidence, len(evidence))
	for _, item := range evidence {
		byIndex[item.Index] = item
	}

	seen := make(map[int]struct{})
	citations := make([]Citation, 0)
	for _, m := range citationMarker.FindAllStringSubmatch(text, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}

		item, ok := byIndex[idx]
		if !ok {
			continue
		}
		citations = append(citations, Citation{
			Index:        item.Index,
			PostID:       item.ID,
			URL:          item.URL,
			AuthorHandle: item.AuthorHandle,
		})
	}

	slices.SortFunc(citations, func(a, b Citation) int { return a.Index - b.Index })
	return citations
}
