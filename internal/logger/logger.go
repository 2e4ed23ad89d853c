package logger

import (
	"log/slog"
	"strings"

	"github.com/dusted-go/logging/prettylog"
)

var Log = slog.New(prettylog.NewHandler(&slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// Init replaces Log with a handler at the given level.
// Unknown levels fall back to info.
func Init(level string) {
	Log = slog.New(prettylog.NewHandler(&slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: false,
	}))
	slog.SetDefault(Log)
}

func ParseLevel(level string) slog.Level {
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
