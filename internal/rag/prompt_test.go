package rag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComposeEmptyEvidence(t *testing.T) {
	got := Compose(nil)

	assert.Contains(t, got, "No relevant saved posts were found")
	assert.Contains(t, got, "Do not invent")
	assert.NotContains(t, got, "[1]")

	// Pure function: same input, same output.
	assert.Equal(t, got, Compose([]Evidence{}))
}

func TestComposeRendersBlocks(t *testing.T) {
	posted := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	evidence := []Evidence{
		{
			Index:        1,
			ID:           "p1",
			Content:      "Go 1.22 changed loop variable scoping.",
			AuthorHandle: "@gopher",
			PostedAt:     &posted,
			URL:          "https://example.com/p1",
		},
		{
			Index:   2,
			ID:      "p2",
			Content: "Second post.",
			URL:     "https://example.com/p2",
		},
	}

	got := Compose(evidence)

	assert.Contains(t, got, "[1] @gopher (March 15, 2024):")
	assert.Contains(t, got, `"Go 1.22 changed loop variable scoping."`)
	assert.Contains(t, got, "Source: https://example.com/p1")

	// Missing author and date fall back to explicit placeholders.
	assert.Contains(t, got, "[2] Unknown (Unknown date):")

	// The instruction directs bracketed citations and honesty.
	assert.Contains(t, got, "bracketed index markers")
	assert.Contains(t, got, "say so honestly")
}

func TestComposeIsDeterministic(t *testing.T) {
	evidence := []Evidence{{Index: 1, ID: "a", Content: "x", URL: "u"}}
	assert.Equal(t, Compose(evidence), Compose(evidence))
}
