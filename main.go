package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/drumato/osle-sdk/cmd"
)

// logLevel reads OSLE_LOG_LEVEL, then LOG_LEVEL. Unknown or empty values mean info.
func logLevel(getenv func(string) string) slog.Level {
	s := getenv("OSLE_LOG_LEVEL")
	if s == "" {
		s = getenv("LOG_LEVEL")
	}

	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Program output goes to stdout, so logs stay on stderr.
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(os.Getenv)})
	slog.SetDefault(slog.New(handler).With("app", "osle"))

	c := cmd.New()

	if err := c.ExecuteContext(ctx); err != nil {
		slog.ErrorContext(ctx, "osle failed", "command", strings.Join(os.Args[1:], " "), "error", err)
		os.Exit(1)
	}
}
