package logger

import (
	"io"
	"log/slog"
	"os"
)

// LoggerFactory manages logger creation and configuration
type LoggerFactory struct {
	config Config
	writer io.Writer
}

// NewLoggerFactory creates a new LoggerFactory with the given configuration
func NewLoggerFactory(config Config) *LoggerFactory {
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}

	return &LoggerFactory{
		config: config,
		writer: writer,
	}
}

// CreateLogger creates a new logger with the factory's configuration
func (f *LoggerFactory) CreateLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       f.config.Level,
		AddSource:   f.config.AddSource,
		ReplaceAttr: replaceLevelName,
	}

	var handler slog.Handler

	switch f.config.Format {
	case "text":
		handler = slog.NewTextHandler(f.writer, opts)
	default: // json
		handler = slog.NewJSONHandler(f.writer, opts)
	}

	return slog.New(handler)
}

// replaceLevelName renders custom levels by name instead of "DEBUG-4".
func replaceLevelName(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) != 0 {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok {
		a.Value = slog.StringValue(LevelName(level))
	}
	return a
}
