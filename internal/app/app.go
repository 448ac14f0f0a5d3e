// Package app wires the application's components together.
//
// Setup builds the full dependency graph once: configuration in,
// database pool, post store, embedding service, model streamer,
// evidence builder, orchestrator and rate limiter out. The cmd layer
// only decides which parts of the graph to drive.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yuchen0/stash/internal/chat"
	"github.com/yuchen0/stash/internal/config"
	"github.com/yuchen0/stash/internal/database"
	"github.com/yuchen0/stash/internal/embedding"
	"github.com/yuchen0/stash/internal/log"
	"github.com/yuchen0/stash/internal/post"
	"github.com/yuchen0/stash/internal/rag"
	"github.com/yuchen0/stash/internal/ratelimit"
)

// App is the application container.
type App struct {
	Config       *config.Config
	Logger       log.Logger
	Pool         *pgxpool.Pool
	Posts        *post.Store
	Embedder     *embedding.Service
	Builder      *rag.Builder
	Orchestrator *chat.Orchestrator
	Limiter      *ratelimit.Limiter
}

// Setup connects to the database and assembles all services. The
// returned App must be closed.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	posts := post.NewStore(pool, logger)
	builder := rag.NewBuilder(posts, logger)

	apiKey := os.Getenv("GEMINI_API_KEY")
	embedder := embedding.NewService(embedding.Open(apiKey, cfg.EmbedderModel), logger)

	// A missing credential leaves the streamer nil; the orchestrator
	// then reports it per request instead of failing startup, so
	// offline commands (import, migrate) still work.
	var streamer chat.Streamer
	if apiKey != "" {
		genai, err := chat.NewGenAI(ctx, apiKey, cfg.ModelName)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating model client: %w", err)
		}
		streamer = genai
	}

	opts := []chat.OrchestratorOption{
		chat.WithRetrieval(cfg.SimilarityThreshold, cfg.MatchCount, cfg.ContextTokens),
	}
	if d := cfg.StreamTimeout(); d > 0 {
		opts = append(opts, chat.WithMaxDuration(d))
	}
	orchestrator := chat.NewOrchestrator(builder, streamer, logger, opts...)

	limiter := ratelimit.New(
		ratelimit.NewFileStore(limiterStatePath()),
		cfg.RateLimit,
		cfg.RateWindow(),
		logger,
	)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Pool:         pool,
		Posts:        posts,
		Embedder:     embedder,
		Builder:      builder,
		Orchestrator: orchestrator,
		Limiter:      limiter,
	}, nil
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// limiterStatePath is where the rolling-window state survives restarts.
func limiterStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "stash-ratelimit.json")
	}
	return filepath.Join(home, ".stash", "ratelimit.json")
}
