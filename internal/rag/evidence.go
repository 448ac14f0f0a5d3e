package rag

import "time"

// Evidence is one archived post selected as grounding material for an
// answer. Created fresh per request by the Builder and discarded when
// the request completes; never persisted.
type Evidence struct {
	// Index is the 1-based citation index, unique within a request.
	// Indices are contiguous from the builder's offset and strictly
	// increasing in selection order.
	Index int `json:"index"`

	// ID is the opaque post identifier.
	ID string `json:"id"`

	// Content is the post text rendered into the grounding prompt.
	Content string `json:"content"`

	// AuthorHandle is the post author's handle, empty when unknown.
	AuthorHandle string `json:"authorHandle,omitempty"`

	// PostedAt is the original post timestamp, nil when unknown.
	PostedAt *time.Time `json:"postedAt,omitempty"`

	// URL is the canonical reference URL for the post.
	URL string `json:"url"`

	// Similarity is the cosine similarity in [0,1] for embedding-mode
	// results; zero for explicit-identifier selections.
	Similarity float64 `json:"similarity,omitempty"`
}

// Citation links a bracketed [n] marker in the model's answer back to
// the evidence item it references. Citations are derived from the
// evidence list, never authored directly.
type Citation struct {
	Index        int    `json:"index"`
	PostID       string `json:"postId"`
	URL          string `json:"url"`
	AuthorHandle string `json:"authorHandle,omitempty"`
}
