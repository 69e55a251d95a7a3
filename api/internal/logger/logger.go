package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds the process logger: JSON lines in prod (CloudWatch, container
// log collectors), human-readable text everywhere else.
func New(lvl string, addSource bool, environment string) *slog.Logger {
	return NewWithWriter(os.Stdout, lvl, addSource, environment)
}

func NewWithWriter(w io.Writer, lvl string, addSource bool, environment string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(lvl),
		AddSource: addSource,
	}

	var handler slog.Handler
	if strings.ToLower(environment) == "prod" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("environment", environment),
	)
}

// Discard is used by tests and by surfaces that have no logger wired yet.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
