package chat

import (
	"context"
	"iter"
	"strings"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one conversation turn. An ordered sequence of turns forms
// the history passed to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Streamer is the language model capability the orchestrator depends
// on: given a system-level grounding instruction and a message
// sequence, produce incremental text deltas. The sequence yields a
// non-nil error at most once, as its final element; the stream may
// fail mid-way after text has already been delivered.
type Streamer interface {
	Stream(ctx context.Context, system string, turns []Turn) iter.Seq2[string, error]
}

// FilterTurns drops turns whose content is empty or whitespace-only.
// Models reject empty message parts, so they are removed before
// transmission rather than surfaced as errors.
func FilterTurns(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for _, turn := range turns {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		out = append(out, turn)
	}
	return out
}
