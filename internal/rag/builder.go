package rag

import (
	"context"
	"log/slog"
	"slices"

	"github.com/yuchen0/stash/internal/post"
)

// Search defaults used when a Selection leaves them unset.
const (
	// DefaultThreshold is the minimum cosine similarity for a post to
	// qualify as evidence.
	DefaultThreshold = 0.7

	// DefaultMatchLimit caps the number of nearest-neighbor results.
	DefaultMatchLimit = 10
)

// PostFinder is the Post Store capability the Builder depends on.
// *post.Store satisfies it.
type PostFinder interface {
	// ByIDs returns the posts matching ids in caller order; unknown
	// identifiers are omitted from the result.
	ByIDs(ctx context.Context, ids []string) ([]post.Post, error)

	// SearchSimilar returns posts whose embedding similarity to the
	// query vector is at least threshold, up to limit results.
	SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]post.Match, error)
}

// Selection describes what evidence a request wants. Exactly one of
// PostIDs or Embedding is expected to be meaningful; when both are
// empty the selection resolves to no evidence.
type Selection struct {
	// PostIDs selects posts explicitly, in this order.
	PostIDs []string

	// Embedding selects posts by nearest-neighbor search.
	Embedding []float32

	// Threshold is the minimum similarity for embedding mode.
	// Zero means DefaultThreshold.
	Threshold float64

	// Limit caps embedding-mode results. Zero means DefaultMatchLimit.
	Limit int

	// IndexOffset is the first citation index to assign. Zero means 1.
	IndexOffset int

	// MaxTokens is the evidence token budget. Zero means
	// DefaultTokenBudget.
	MaxTokens int
}

// Builder resolves a Selection into an ordered, deduplicated,
// token-budgeted evidence list with stable citation indices.
type Builder struct {
	finder PostFinder
	logger *slog.Logger
}

// NewBuilder creates a Builder backed by finder.
func NewBuilder(finder PostFinder, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{finder: finder, logger: logger}
}

// Build resolves sel into evidence. An empty result is not an error:
// when no evidence matches, or the selection names none, Build returns
// an empty list and the caller proceeds ungrounded.
func (b *Builder) Build(ctx context.Context, sel Selection) ([]Evidence, error) {
	var items []Evidence

	switch {
	case len(sel.PostIDs) > 0:
		posts, err := b.finder.ByIDs(ctx, dedupe(sel.PostIDs))
		if err != nil {
			return nil, err
		}
		items = make([]Evidence, 0, len(posts))
		for _, p := range posts {
			items = append(items, fromPost(p, 0))
		}

	case len(sel.Embedding) > 0:
		threshold := sel.Threshold
		if threshold <= 0 {
			threshold = DefaultThreshold
		}
		limit := sel.Limit
		if limit <= 0 {
			limit = DefaultMatchLimit
		}
		matches, err := b.finder.SearchSimilar(ctx, sel.Embedding, threshold, limit)
		if err != nil {
			return nil, err
		}
		// The store already orders by distance but the descending
		// similarity ordering is a contract here, not an accident of
		// the query. Stable sort keeps original order on ties.
		slices.SortStableFunc(matches, func(a, c post.Match) int {
			switch {
			case a.Similarity > c.Similarity:
				return -1
			case a.Similarity < c.Similarity:
				return 1
			default:
				return 0
			}
		})
		items = make([]Evidence, 0, len(matches))
		for _, m := range matches {
			items = append(items, fromPost(m.Post, m.Similarity))
		}

	default:
		return []Evidence{}, nil
	}

	items = LimitByBudget(items, sel.MaxTokens)

	// Indices are assigned after budgeting so every index the model
	// can cite refers to a rendered block.
	offset := sel.IndexOffset
	if offset <= 0 {
		offset = 1
	}
	for i := range items {
		items[i].Index = offset + i
	}

	b.logger.Debug("evidence resolved",
		"count", len(items),
		"explicit", len(sel.PostIDs) > 0,
	)
	return items, nil
}

func fromPost(p post.Post, similarity float64) Evidence {
	return Evidence{
		ID:           p.ID,
		Content:      p.Content,
		AuthorHandle: p.AuthorHandle,
		PostedAt:     p.PostedAt,
		URL:          p.URL,
		Similarity:   similarity,
	}
}

// dedupe removes repeated identifiers, keeping first occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
