package testutil

import "log/slog"

// DiscardLogger returns a slog.Logger that discards all output. For
// code using the internal/log alias, log.NewNop() is the same thing.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
