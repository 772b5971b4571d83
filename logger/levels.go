package logger

import "log/slog"

// LevelTrace sits below debug for per-acquire logging.
const LevelTrace slog.Level = -8

// LevelName returns the name of a log level
func LevelName(level slog.Level) string {
	if level == LevelTrace {
		return "TRACE"
	}
	return level.String()
}
