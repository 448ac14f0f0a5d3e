package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yuchen0/stash/internal/app"
	"github.com/yuchen0/stash/internal/config"
	"github.com/yuchen0/stash/internal/post"
)

// runImport loads a JSON export of saved posts into the archive,
// embedding each post's content for semantic search.
func runImport() error {
	if len(os.Args) < 3 {
		return errors.New("usage: stash import <file>")
	}
	path := os.Args[2]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	posts, err := post.ParseExport(data)
	if err != nil {
		return fmt.Errorf("parsing export: %w", err)
	}

	imported, unembedded := 0, 0
	for _, p := range posts {
		if ctx.Err() != nil {
			return fmt.Errorf("import interrupted after %d posts: %w", imported, ctx.Err())
		}

		// Posts without an embedding are still reachable by explicit
		// identifier, so an embedding failure downgrades rather than
		// skips.
		vec, err := a.Embedder.EmbedDocument(ctx, p.Content)
		if err != nil {
			logger.Warn("embedding failed, storing without vector", "post", p.ID, "error", err)
			unembedded++
		} else {
			p.Embedding = vec
		}

		if err := a.Posts.Upsert(ctx, p); err != nil {
			return fmt.Errorf("storing post %s: %w", p.ID, err)
		}
		imported++
	}

	fmt.Printf("Imported %d posts", imported)
	if unembedded > 0 {
		fmt.Printf(" (%d without embeddings)", unembedded)
	}
	fmt.Println()
	return nil
}
