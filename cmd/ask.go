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
	"github.com/yuchen0/stash/internal/chat"
	"github.com/yuchen0/stash/internal/config"
	"github.com/yuchen0/stash/internal/rag"
)

// runAsk asks one question and streams the grounded answer to stdout.
func runAsk() error {
	question := strings.TrimSpace(strings.Join(os.Args[2:], " "))
	if question == "" {
		return errors.New("usage: stash ask <question>")
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

	state := a.Limiter.CheckState()
	if !state.CanSend {
		resetMin := int64(0)
		if state.ResetInMs != nil {
			resetMin = *state.ResetInMs / 60000
		}
		return fmt.Errorf("rate limit reached (%d/%d this hour), try again in about %d minutes",
			state.Limit, state.Limit, resetMin+1)
	}

	// Retrieval is best-effort: an embedding failure leaves the
	// question ungrounded rather than unanswered.
	var vec []float32
	if v, err := a.Embedder.EmbedQuery(ctx, question); err != nil {
		logger.Warn("query embedding failed, answering ungrounded", "error", err)
	} else {
		vec = v
	}

	var (
		evidence []rag.Evidence
		answer   strings.Builder
		streamed bool
	)
	for chunk := range a.Orchestrator.Stream(ctx, chat.Request{Message: question, Embedding: vec}) {
		switch chunk.Type {
		case chat.ChunkContext:
			evidence = chunk.ContextPosts
			if !streamed {
				streamed = true
				if err := a.Limiter.RecordAccepted(); err != nil {
					logger.Warn("failed to record accepted request", "error", err)
				}
			}
		case chat.ChunkText:
			fmt.Print(chunk.Content)
			answer.WriteString(chunk.Content)
		case chat.ChunkError:
			fmt.Println()
			return errors.New(chunk.Error)
		case chat.ChunkDone:
			fmt.Println()
		}
	}

	printSources(answer.String(), evidence)
	return nil
}

// printSources lists the posts the answer actually cited.
func printSources(answer string, evidence []rag.Evidence) {
	citations := rag.ParseCitations(answer, evidence)
	if len(citations) == 0 {
		return
	}

	fmt.Println()
	fmt.Println("Sources:")
	for _, c := range citations {
		if c.AuthorHandle != "" {
			fmt.Printf("  [%d] %s - %s\n", c.Index, c.AuthorHandle, c.URL)
			continue
		}
		fmt.Printf("  [%d] %s\n", c.Index, c.URL)
	}
}
