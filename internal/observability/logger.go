package observability

import (
	"io"
	"log/slog"
	"strings"
)

// NewLoggerTo builds a slog.Logger writing to w. The service uses the shared
// observability.NewLogger, which always writes to stdout; the CLI needs
// stdout for its JSON output and logs to stderr through this instead.
// format is "json" or "text"; level is one of debug, info, warn, error
// (default info).
func NewLoggerTo(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
