package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogging(t *testing.T) {
	ctx := context.Background()
	ctx = WithContextValue(ctx, SessionIDKey, "sess-123")
	ctx = WithContextValue(ctx, RequestIDKey, "req-7")

	args := ExtractContextValues(ctx)
	assert.Equal(t, []any{"session_id", "sess-123", "request_id", "req-7"}, args)

	// appending keeps caller args first
	args = appendContextArgs(ctx, "key", "value")
	assert.Equal(t, []any{"key", "value", "session_id", "sess-123", "request_id", "req-7"}, args)

	assert.Nil(t, ExtractContextValues(nil))
}

func TestFactoryWritesToConfiguredWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerFactory(Config{Level: LevelTrace, Format: "json", Writer: &buf}).CreateLogger()

	log.Log(context.Background(), LevelTrace, "tick", Node("primary"), slog.Int("idle", 3), Duration("held", 1500*time.Millisecond))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "TRACE", entry["level"])
	assert.Equal(t, "tick", entry["msg"])
	assert.Equal(t, "primary", entry["node"])
	assert.Equal(t, float64(3), entry["idle"])
	assert.Equal(t, "1.5s", entry["held"])
}

func TestParseLevel(t *testing.T) {
	t.Run("Names", func(t *testing.T) {
		for name, want := range map[string]slog.Level{
			"TRACE": LevelTrace,
			"debug": slog.LevelDebug,
			"INFO":  slog.LevelInfo,
			"WARN":  slog.LevelWarn,
			"ERROR": slog.LevelError,
		} {
			got, ok := ParseLevel(name)
			assert.True(t, ok, name)
			assert.Equal(t, want, got, name)
		}
	})

	t.Run("Integer", func(t *testing.T) {
		got, ok := ParseLevel("2")
		assert.True(t, ok)
		assert.Equal(t, slog.Level(2), got)
	})

	t.Run("Invalid", func(t *testing.T) {
		_, ok := ParseLevel("loud")
		assert.False(t, ok)
	})
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_ADD_SOURCE", "true")

	config := LoadConfig()
	assert.Equal(t, slog.LevelDebug, config.Level)
	assert.Equal(t, "text", config.Format)
	assert.True(t, config.AddSource)
	assert.Equal(t, os.Stdout, config.Writer)
}

func TestLoadConfigIgnoresInvalidEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("LOG_ADD_SOURCE", "maybe")

	assert.Equal(t, DefaultConfig(), LoadConfig())
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "TRACE", LevelName(LevelTrace))
	assert.Equal(t, "INFO", LevelName(slog.LevelInfo))
}
