package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerWritesServiceAndTrace(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Service: "geodist", Module: "engine", Level: "info"}, &buf)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	l.InfoContext(ctx, "calculated", "rows", 3)
	span.End()

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "geodist", entry["service"])
	assert.Equal(t, "engine", entry["module"])
	assert.Equal(t, float64(3), entry["rows"])
	assert.Contains(t, entry, "timestamp")
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Service: "geodist", Level: "warn"}, &buf)
	defer SetLevel("info")

	l.Info("hidden")
	assert.Empty(t, buf.String())

	SetLevel("debug")
	assert.Equal(t, slog.LevelDebug, CurrentLevel())
	l.Debug("shown")
	assert.Len(t, decodeLines(t, &buf), 1)
}

func TestFileOutputWithStdoutTee(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geodist.log")
	l := NewFromConfig(Config{Service: "geodist", Level: "info", File: path, Stdout: true, MaxSize: 1})
	l.Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
