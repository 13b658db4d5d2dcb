package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"authtrail/internal/config"
)

const serviceName = "authtrail"

// Setup installs the process-wide slog handler described by cfg.
func Setup(cfg config.LogConfig) {
	slog.SetDefault(New(os.Stdout, cfg))
}

// New builds a logger writing to w, JSON unless cfg.Format is "text".
func New(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// For returns the default logger tagged with the service and module name.
func For(module string) *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", module,
	)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
