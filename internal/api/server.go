// Package api is the JSON/SSE HTTP surface of the archive.
//
// One streaming endpoint does the real work: POST /api/v1/chat/stream
// runs the chat orchestrator and relays its chunks as server-sent
// events. The rest is telemetry and plumbing around the Post Store.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yuchen0/stash/internal/chat"
	"github.com/yuchen0/stash/internal/embedding"
	"github.com/yuchen0/stash/internal/post"
	"github.com/yuchen0/stash/internal/ratelimit"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Orchestrator *chat.Orchestrator  // Required
	Limiter      *ratelimit.Limiter  // Required: admission control for chat
	Posts        *post.Store         // Optional: nil disables search/recent
	Embedder     *embedding.Service  // Optional: nil disables semantic search
	Pool         *pgxpool.Pool       // Optional: nil disables pool check in /ready
	CORSOrigins  []string            // Allowed origins for CORS
	TrustProxy   bool                // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst    int                 // Per-IP burst size (0 = default 60)
}

// Server is the archive's HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes configured.
func NewServer(_ context.Context, cfg ServerConfig) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if cfg.Limiter == nil {
		return nil, errors.New("rate limiter is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	ch := &chatHandler{
		logger:       logger,
		orchestrator: cfg.Orchestrator,
		limiter:      cfg.Limiter,
	}
	mux.HandleFunc("POST /api/v1/chat/stream", ch.stream)

	rh := &ratelimitHandler{limiter: cfg.Limiter}
	mux.HandleFunc("GET /api/v1/ratelimit", rh.state)

	if cfg.Posts != nil {
		ph := &postHandler{
			logger:   logger,
			posts:    cfg.Posts,
			embedder: cfg.Embedder,
		}
		if cfg.Embedder != nil {
			mux.HandleFunc("POST /api/v1/search", ph.search)
		}
		mux.HandleFunc("GET /api/v1/posts/recent", ph.recent)
		mux.HandleFunc("GET /api/v1/stats", ph.stats)
	}

	// Per-IP token bucket guards the whole surface; the rolling-window
	// limiter inside chatHandler is the user-facing hourly cap.
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newIPLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → CORS → IPRateLimit → Routes
	// RequestID precedes Logging so request_id lands in log attributes;
	// CORS precedes the limiter so preflights get their headers.
	var handler http.Handler = mux
	handler = ipRateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
