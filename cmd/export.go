package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yuchen0/stash/internal/app"
	"github.com/yuchen0/stash/internal/config"
	"github.com/yuchen0/stash/internal/post"
)

// runExport writes the whole archive as a JSON export, the same format
// stash import consumes. With no file argument the export goes to
// stdout.
func runExport() error {
	out := ""
	if len(os.Args) > 2 {
		out = os.Args[2]
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

	posts, err := a.Posts.All(ctx)
	if err != nil {
		return fmt.Errorf("loading posts: %w", err)
	}

	data, err := post.MarshalExport(posts)
	if err != nil {
		return err
	}

	if out == "" {
		fmt.Println(string(data))
		return nil
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Printf("Exported %d posts to %s\n", len(posts), out)
	return nil
}
