package cmd

import (
	"fmt"
	"log/slog"

	"github.com/yuchen0/stash/db"
	"github.com/yuchen0/stash/internal/config"
)

// runMigrate applies all pending database migrations.
func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := cfg.PostgresURL()
	slog.Info("applying migrations", "database", cfg.PostgresDBName)

	if err := db.Migrate(url); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}

	slog.Info("schema is up to date")
	return nil
}
