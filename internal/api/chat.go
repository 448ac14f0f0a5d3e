package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/yuchen0/stash/internal/chat"
	"github.com/yuchen0/stash/internal/ratelimit"
)

// maxChatBodyBytes bounds the inbound request body. Embeddings are a
// few KB of floats; 1MB leaves generous headroom.
const maxChatBodyBytes = 1 << 20

// chatHandler streams grounded answers over server-sent events.
type chatHandler struct {
	logger       *slog.Logger
	orchestrator *chat.Orchestrator
	limiter      *ratelimit.Limiter
}

// stream handles POST /api/v1/chat/stream.
//
// Admission control runs before the orchestrator: an exhausted window
// is a 429 with the limiter's telemetry in the body, not an error
// chunk. Once admitted, every chunk the orchestrator yields is written
// as one SSE event and flushed immediately.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	state := h.limiter.CheckState()
	if !state.CanSend {
		h.logger.Info("chat request refused by rate limit",
			"remaining", state.Remaining,
			"limit", state.Limit,
		)
		writeJSON(w, http.StatusTooManyRequests, state)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	recorded := false
	for chunk := range h.orchestrator.Stream(r.Context(), req) {
		// The context chunk means validation passed and the request
		// was actually dispatched; that is the moment it starts
		// counting against the window. Rejected requests never do.
		if !recorded && chunk.Type == chat.ChunkContext {
			recorded = true
			if err := h.limiter.RecordAccepted(); err != nil {
				h.logger.Warn("failed to record accepted request", "error", err)
			}
		}

		if err := writeSSE(w, chunk); err != nil {
			h.logger.Debug("client went away mid-stream", "error", err)
			return
		}
		flusher.Flush()
	}
}

// writeSSE frames one chunk as a server-sent event:
// "data: <json>\n\n".
func writeSSE(w http.ResponseWriter, chunk chat.Chunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("encoding chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}
