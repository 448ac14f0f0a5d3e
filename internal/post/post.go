// Package post defines the archived post model and its PostgreSQL store.
package post

import (
	"encoding/json"
	"fmt"
	"time"
)

// Post is one archived social-media post.
type Post struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	Content      string     `json:"content"`
	AuthorHandle string     `json:"author_handle,omitempty"`
	AuthorName   string     `json:"author_name,omitempty"`
	PostedAt     *time.Time `json:"posted_at,omitempty"`
	ArchivedAt   time.Time  `json:"archived_at"`
	ArchivedVia  string     `json:"archived_via,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Topics       []string   `json:"topics,omitempty"`
	Notes        string     `json:"notes,omitempty"`

	// Quoted post, carried inline when the archived post quotes another.
	QuotedText   string `json:"quoted_text,omitempty"`
	QuotedAuthor string `json:"quoted_author,omitempty"`
	QuotedURL    string `json:"quoted_url,omitempty"`

	// Embedding is the 384-dim vector for the post content.
	// Nil for posts not yet embedded.
	Embedding []float32 `json:"-"`
}

// Match is a post returned from similarity search.
type Match struct {
	Post
	Similarity float64 `json:"similarity"`
}

// ParseExport decodes a JSON export file into posts.
// The export format is a top-level array of post objects; posts without
// an id or content are rejected rather than silently skipped, since a
// partial import is harder to notice than a failed one.
func ParseExport(data []byte) ([]Post, error) {
	var posts []Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("decoding export: %w", err)
	}

	for i, p := range posts {
		if p.ID == "" {
			return nil, fmt.Errorf("post at index %d has no id", i)
		}
		if p.Content == "" {
			return nil, fmt.Errorf("post %q has no content", p.ID)
		}
	}

	return posts, nil
}

// MarshalExport encodes posts in the export format ParseExport reads.
// Embeddings are not exported; import regenerates them.
func MarshalExport(posts []Post) ([]byte, error) {
	if posts == nil {
		posts = []Post{}
	}
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}
	return data, nil
}
