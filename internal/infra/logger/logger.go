package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"arxiv-scholar/internal/infra/config"
)

// New builds the process logger from config. The returned closer flushes
// and closes a file target; for stdout/stderr it is a no-op.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	w, closer, err := outputWriter(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}
	return slog.New(handlerFor(cfg.Format, w, levelFrom(cfg.Level))), closer, nil
}

// handlerFor selects the slog handler for a format name. Anything that is
// not "json" logs as text.
func handlerFor(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// levelFrom maps a config level name to a slog.Level, defaulting to info.
func levelFrom(s string) slog.Level {
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

// outputWriter resolves the output target. "stdout", "stderr" and the
// empty string map to the process streams; anything else is opened as an
// append-only file.
func outputWriter(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, noop, nil
	case "stderr", "":
		return os.Stderr, noop, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}
