package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs the default slog logger for service. Output is JSON when
// CONSISTENT_JSON_LOG is 1, true or json, text otherwise; the level comes
// from CONSISTENT_LOG_LEVEL.
func Init(service string) *slog.Logger {
	return New(os.Stdout, service, os.Getenv("CONSISTENT_JSON_LOG"), os.Getenv("CONSISTENT_LOG_LEVEL"))
}

func New(w io.Writer, service, mode, level string) *slog.Logger {
	mode = strings.ToLower(mode)
	json := mode == "1" || mode == "true" || mode == "json"
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	logger.Debug("logging initialized", "json", json)
	return logger
}

func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
