// Package cmd provides the stash CLI commands.
//
// Commands:
//   - serve: HTTP API server with SSE chat streaming
//   - ask: one-shot grounded question from the terminal
//   - search: semantic search over the archive
//   - import: load a JSON export of saved posts
//   - export: write the archive back out as a JSON export
//   - migrate: apply database migrations
//
// Signal handling and graceful shutdown are implemented for all
// long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Execute is the main entry point for the stash CLI.
func Execute() error {
	// Best effort: a missing .env file just means the environment is
	// already set.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "ask":
		return runAsk()
	case "search":
		return runSearch()
	case "import":
		return runImport()
	case "export":
		return runExport()
	case "migrate":
		return runMigrate()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("stash - Ask questions against your archive of saved posts")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  stash serve [addr]       Start HTTP API server (default: 127.0.0.1:8090)")
	fmt.Println("  stash ask <question>     Ask a question, streamed to the terminal")
	fmt.Println("  stash search <query>     Semantic search over saved posts")
	fmt.Println("  stash import <file>      Import a JSON export of saved posts")
	fmt.Println("  stash export [file]      Export the archive as JSON (default: stdout)")
	fmt.Println("  stash migrate            Apply database migrations")
	fmt.Println("  stash --version          Show version information")
	fmt.Println("  stash --help             Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY           Required for ask/serve: Gemini API key")
	fmt.Println("  DATABASE_URL             Optional: overrides postgres_* config")
	fmt.Println("  STASH_RATE_LIMIT         Optional: hourly request cap (default 20)")
	fmt.Println("  DEBUG                    Optional: enable debug logging")
}
