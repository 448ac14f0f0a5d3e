package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/yuchen0/stash/internal/app"
	"github.com/yuchen0/stash/internal/config"
)

// runSearch runs a semantic search over the archive and prints scored
// matches.
func runSearch() error {
	query := strings.TrimSpace(strings.Join(os.Args[2:], " "))
	if query == "" {
		return errors.New("usage: stash search <query>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	vec, err := a.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return fmt.Errorf("embedding query: %w", err)
	}

	matches, err := a.Posts.SearchSimilar(ctx, vec, cfg.SimilarityThreshold, cfg.MatchCount)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(matches) == 0 {
		fmt.Println("No matching posts found.")
		return nil
	}

	for _, m := range matches {
		author := m.AuthorHandle
		if author == "" {
			author = "unknown"
		}
		fmt.Printf("%.2f  %s (%s)\n", m.Similarity, m.URL, author)
		fmt.Printf("      %s\n", firstLine(m.Content, 120))
	}
	return nil
}

// firstLine returns the first line of s, truncated to max runes.
func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max-3]) + "..."
	}
	return s
}
