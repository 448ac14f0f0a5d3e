package rag

import (
	"fmt"
	"strings"
)

const emptyEvidenceInstruction = `You are a helpful assistant answering questions about the user's personal archive of saved posts.

No relevant saved posts were found for this question. Say so honestly, then offer whatever general help you can. Do not invent quotes, sources, or citations.`

const groundingHeader = `You are a helpful assistant answering questions about the user's personal archive of saved posts.

Answer using ONLY the saved posts below. Cite the posts you draw on with bracketed index markers, e.g. [1] or [2], matching the numbers shown. If the posts do not contain enough information to answer, say so honestly instead of guessing.

Saved posts:`

// Compose renders the evidence list into the system-level grounding
// instruction. Pure and deterministic given its input.
//
// With no evidence the instruction tells the model to admit that
// nothing relevant was found rather than fabricate grounding. Otherwise
// each item becomes a labeled block the model can cite by index.
func Compose(evidence []Evidence) string {
	if len(evidence) == 0 {
		return emptyEvidenceInstruction
	}

	blocks := make([]string, 0, len(evidence))
	for _, item := range evidence {
		blocks = append(blocks, renderBlock(item))
	}

	return groundingHeader + "\n\n" + strings.Join(blocks, "\n\n")
}

func renderBlock(item Evidence) string {
	author := item.AuthorHandle
	if author == "" {
		author = "Unknown"
	}

	date := "Unknown date"
	if item.PostedAt != nil {
		date = item.PostedAt.Format("January 2, 2006")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s (%s):\n", item.Index, author, date)
	fmt.Fprintf(&b, "%q", item.Content)
	if item.URL != "" {
		fmt.Fprintf(&b, "\nSource: %s", item.URL)
	}
	return b.String()
}
