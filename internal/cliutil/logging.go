// Package cliutil holds the small pieces of plumbing every cmd/ binary
// shares: slog installation from the --log-format flag.
package cliutil

import (
	"log/slog"
	"os"
)

// InstallLogger configures the default slog.Logger for text or JSON output,
// matching the "--log-format" flag every cmd/run-* and cmd/build-* binary
// exposes.
func InstallLogger(format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
