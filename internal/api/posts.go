package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yuchen0/stash/internal/embedding"
	"github.com/yuchen0/stash/internal/post"
	"github.com/yuchen0/stash/internal/rag"
)

// postHandler serves search and browsing over the archive.
type postHandler struct {
	logger   *slog.Logger
	posts    *post.Store
	embedder *embedding.Service
}

// searchRequest is the body of POST /api/v1/search.
type searchRequest struct {
	Query     string  `json:"query"`
	Threshold float64 `json:"threshold,omitempty"`
	Limit     int     `json:"limit,omitempty"`
}

// searchResponse carries scored matches.
type searchResponse struct {
	Matches []post.Match `json:"matches"`
}

// search embeds the query text and runs nearest-neighbor lookup.
func (h *postHandler) search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query is required")
		return
	}
	if req.Threshold <= 0 || req.Threshold > 1 {
		req.Threshold = rag.DefaultThreshold
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = rag.DefaultMatchLimit
	}

	vec, err := h.embedder.EmbedQuery(r.Context(), req.Query)
	if err != nil {
		h.logger.Error("query embedding failed", "error", err)
		writeError(w, http.StatusBadGateway, "embedding_failed", "could not embed the query")
		return
	}

	matches, err := h.posts.SearchSimilar(r.Context(), vec, req.Threshold, req.Limit)
	if err != nil {
		h.logger.Error("similarity search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search_failed", "search failed")
		return
	}
	if matches == nil {
		matches = []post.Match{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Matches: matches})
}

// recent handles GET /api/v1/posts/recent?limit=N.
func (h *postHandler) recent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	posts, err := h.posts.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("recent posts lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup_failed", "could not list posts")
		return
	}
	if posts == nil {
		posts = []post.Post{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// stats handles GET /api/v1/stats.
func (h *postHandler) stats(w http.ResponseWriter, r *http.Request) {
	count, err := h.posts.Count(r.Context())
	if err != nil {
		h.logger.Error("post count failed", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup_failed", "could not count posts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": count})
}
