package rag

import "unicode/utf8"

// charsPerToken is the fixed estimation heuristic: roughly four
// characters of text per language-model token.
const charsPerToken = 4

// DefaultTokenBudget caps the total estimated size of evidence content
// sent to the model.
const DefaultTokenBudget = 4000

// EstimateTokens estimates the token cost of s, rounding up.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + charsPerToken - 1) / charsPerToken
}

// LimitByBudget returns the longest prefix of items whose summed
// estimated token cost stays within maxTokens. The first item whose
// inclusion would exceed the budget, and every item after it, is
// dropped entirely; an individual item's content is never truncated.
// A non-positive maxTokens falls back to DefaultTokenBudget.
func LimitByBudget(items []Evidence, maxTokens int) []Evidence {
	if maxTokens <= 0 {
		maxTokens = DefaultTokenBudget
	}

	total := 0
	for i, item := range items {
		cost := EstimateTokens(item.Content)
		if total+cost > maxTokens {
			return items[:i]
		}
		total += cost
	}
	return items
}
