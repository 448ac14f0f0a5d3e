package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/yuchen0/stash/internal/embedding"
)

// HashBackend is a deterministic embedding.Backend for tests: the same
// text always maps to the same unit vector, different texts almost
// always to different ones. No network, no model.
type HashBackend struct{}

// Embed implements embedding.Backend.
func (HashBackend) Embed(_ context.Context, text string, task embedding.Task) ([]float32, error) {
	vec := make([]float32, embedding.Dimension)

	// Seed each component from a rolling hash of the text plus the
	// task, so query and document spaces differ like real retrieval
	// models.
	h := fnv.New64a()
	_, _ = h.Write([]byte(task))
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int64(seed>>32)) / float32(math.MaxInt32)
		vec[i] = v
		norm += float64(v) * float64(v)
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// OpenHashBackend adapts HashBackend to an embedding.OpenFunc.
func OpenHashBackend() embedding.OpenFunc {
	return func(context.Context) (embedding.Backend, error) {
		return HashBackend{}, nil
	}
}
