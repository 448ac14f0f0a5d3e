package rag

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuchen0/stash/internal/log"
	"github.com/yuchen0/stash/internal/post"
)

type stubFinder struct {
	posts   map[string]post.Post
	matches []post.Match
	err     error

	gotIDs       []string
	gotThreshold float64
	gotLimit     int
}

func (f *stubFinder) ByIDs(_ context.Context, ids []string) ([]post.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotIDs = ids
	out := make([]post.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *stubFinder) SearchSimilar(_ context.Context, _ []float32, threshold float64, limit int) ([]post.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotThreshold = threshold
	f.gotLimit = limit
	return f.matches, nil
}

func samplePost(id string) post.Post {
	return post.Post{
		ID:      id,
		URL:     "https://example.com/" + id,
		Content: "content of " + id,
	}
}

func TestBuildExplicitMode(t *testing.T) {
	finder := &stubFinder{posts: map[string]post.Post{
		"a": samplePost("a"),
		"b": samplePost("b"),
		"c": samplePost("c"),
	}}
	b := NewBuilder(finder, log.NewNop())

	t.Run("preserves caller order", func(t *testing.T) {
		got, err := b.Build(context.Background(), Selection{PostIDs: []string{"c", "a", "b"}})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "c", got[0].ID)
		assert.Equal(t, "a", got[1].ID)
		assert.Equal(t, "b", got[2].ID)
	})

	t.Run("unknown identifiers silently dropped", func(t *testing.T) {
		got, err := b.Build(context.Background(), Selection{PostIDs: []string{"a", "nope", "b"}})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "b", got[1].ID)
	})

	t.Run("duplicates collapse to first occurrence", func(t *testing.T) {
		got, err := b.Build(context.Background(), Selection{PostIDs: []string{"b", "a", "b"}})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "b", got[0].ID)
		assert.Equal(t, "a", got[1].ID)
	})
}

func TestBuildEmbeddingMode(t *testing.T) {
	matches := []post.Match{
		{Post: samplePost("low"), Similarity: 0.71},
		{Post: samplePost("high"), Similarity: 0.93},
		{Post: samplePost("mid"), Similarity: 0.85},
	}
	finder := &stubFinder{matches: matches}
	b := NewBuilder(finder, log.NewNop())

	got, err := b.Build(context.Background(), Selection{Embedding: []float32{0.1, 0.2}})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "high", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, "low", got[2].ID)
	assert.InDelta(t, 0.93, got[0].Similarity, 1e-9)

	assert.InDelta(t, DefaultThreshold, finder.gotThreshold, 1e-9)
	assert.Equal(t, DefaultMatchLimit, finder.gotLimit)
}

func TestBuildTieOrderIsStable(t *testing.T) {
	finder := &stubFinder{matches: []post.Match{
		{Post: samplePost("first"), Similarity: 0.8},
		{Post: samplePost("second"), Similarity: 0.8},
	}}
	b := NewBuilder(finder, log.NewNop())

	got, err := b.Build(context.Background(), Selection{Embedding: []float32{1}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].ID)
	assert.Equal(t, "second", got[1].ID)
}

func TestBuildIndexMonotonicity(t *testing.T) {
	for _, offset := range []int{0, 1, 4} {
		for n := 0; n <= 5; n++ {
			ids := make([]string, n)
			posts := make(map[string]post.Post, n)
			for i := range n {
				id := fmt.Sprintf("p%d", i)
				ids[i] = id
				posts[id] = samplePost(id)
			}
			b := NewBuilder(&stubFinder{posts: posts}, log.NewNop())

			got, err := b.Build(context.Background(), Selection{PostIDs: ids, IndexOffset: offset})
			require.NoError(t, err)
			require.Len(t, got, n)

			want := offset
			if want <= 0 {
				want = 1
			}
			for _, item := range got {
				assert.Equal(t, want, item.Index)
				want++
			}
		}
	}
}

func TestBuildIndicesAssignedAfterBudgeting(t *testing.T) {
	posts := make(map[string]post.Post)
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		p := samplePost(id)
		p.Content = string(slices.Repeat([]byte("x"), 4000))
		posts[id] = p
	}
	b := NewBuilder(&stubFinder{posts: posts}, log.NewNop())

	got, err := b.Build(context.Background(), Selection{PostIDs: ids, MaxTokens: 2000})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, 2, got[1].Index)
}

func TestBuildEmptySelection(t *testing.T) {
	b := NewBuilder(&stubFinder{}, log.NewNop())

	got, err := b.Build(context.Background(), Selection{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBuildStoreErrorPropagates(t *testing.T) {
	boom := errors.New("store down")
	b := NewBuilder(&stubFinder{err: boom}, log.NewNop())

	_, err := b.Build(context.Background(), Selection{PostIDs: []string{"a"}})
	assert.ErrorIs(t, err, boom)

	_, err = b.Build(context.Background(), Selection{Embedding: []float32{1}})
	assert.ErrorIs(t, err, boom)
}
