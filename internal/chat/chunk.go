package chat

import (
	"encoding/json"

	"github.com/yuchen0/stash/internal/rag"
)

// ChunkType tags a stream chunk on the wire.
type ChunkType string

const (
	// ChunkContext carries the resolved evidence list. Emitted exactly
	// once per request, before any text.
	ChunkContext ChunkType = "context"

	// ChunkText carries one incremental text delta, verbatim.
	ChunkText ChunkType = "text"

	// ChunkError is terminal and carries a human-readable message.
	ChunkError ChunkType = "error"

	// ChunkDone is always the last chunk, after success or error.
	ChunkDone ChunkType = "done"
)

// Chunk is one unit of the response stream.
type Chunk struct {
	Type         ChunkType
	Content      string
	ContextPosts []rag.Evidence
	Error        string
}

// ContextChunk wraps the resolved evidence list. A nil list serializes
// as an empty array, never null.
func ContextChunk(evidence []rag.Evidence) Chunk {
	if evidence == nil {
		evidence = []rag.Evidence{}
	}
	return Chunk{Type: ChunkContext, ContextPosts: evidence}
}

// TextChunk wraps one text delta.
func TextChunk(delta string) Chunk {
	return Chunk{Type: ChunkText, Content: delta}
}

// ErrorChunk wraps a terminal error message.
func ErrorChunk(msg string) Chunk {
	return Chunk{Type: ChunkError, Error: msg}
}

// DoneChunk is the final chunk of every stream.
func DoneChunk() Chunk {
	return Chunk{Type: ChunkDone}
}

// MarshalJSON renders only the fields that belong to the chunk's type,
// so text chunks never carry a contextPosts field and done chunks are
// bare tags.
func (c Chunk) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case ChunkContext:
		posts := c.ContextPosts
		if posts == nil {
			posts = []rag.Evidence{}
		}
		return json.Marshal(struct {
			Type         ChunkType      `json:"type"`
			ContextPosts []rag.Evidence `json:"contextPosts"`
		}{c.Type, posts})
	case ChunkText:
		return json.Marshal(struct {
			Type    ChunkType `json:"type"`
			Content string    `json:"content"`
		}{c.Type, c.Content})
	case ChunkError:
		return json.Marshal(struct {
			Type  ChunkType `json:"type"`
			Error string    `json:"error"`
		}{c.Type, c.Error})
	default:
		return json.Marshal(struct {
			Type ChunkType `json:"type"`
		}{c.Type})
	}
}
