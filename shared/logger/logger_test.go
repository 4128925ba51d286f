package logger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()

	var entries []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry), "line %q", scanner.Text())
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func newBufferLogger(t *testing.T, level, format string) (*Logger, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	l, err := New(&Config{Level: level, Format: format, writer: buf})
	require.NoError(t, err)
	return l, buf
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		level      string
		wantLevels []string
	}{
		{level: "debug", wantLevels: []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{level: "info", wantLevels: []string{"INFO", "WARN", "ERROR"}},
		{level: "warning", wantLevels: []string{"WARN", "ERROR"}},
		{level: "error", wantLevels: []string{"ERROR"}},
		{level: "verbose", wantLevels: []string{"INFO", "WARN", "ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, buf := newBufferLogger(t, tt.level, "json")

			l.Debug("Batch received", slog.Int("size", 3))
			l.Info("Processing job", slog.String("job_id", "job-1"))
			l.Warn("Unsupported action", slog.String("reason", "Unsupported action 'x'"))
			l.Error("Failed to publish notification", slog.String("topic", "failure"))

			var got []string
			for _, entry := range decodeLines(t, buf.Bytes()) {
				got = append(got, entry["level"].(string))
			}
			assert.Equal(t, tt.wantLevels, got)
		})
	}
}

func TestNew_Formats(t *testing.T) {
	t.Run("json carries job attributes", func(t *testing.T) {
		l, buf := newBufferLogger(t, "info", "json")

		l.Info("Job finished",
			slog.String("job_id", "job-42"),
			slog.String("status", "completed"),
			slog.Bool("redelivered", false),
			slog.Int("attempt", 2),
		)

		entries := decodeLines(t, buf.Bytes())
		require.Len(t, entries, 1)
		assert.Equal(t, "Job finished", entries[0]["msg"])
		assert.Equal(t, "job-42", entries[0]["job_id"])
		assert.Equal(t, "completed", entries[0]["status"])
		assert.Equal(t, false, entries[0]["redelivered"])
		assert.Equal(t, float64(2), entries[0]["attempt"])
		assert.Contains(t, entries[0], "time")
	})

	t.Run("console is the default", func(t *testing.T) {
		l, buf := newBufferLogger(t, "info", "")

		l.Info("Worker started", slog.String("worker_id", "worker-abc"))

		out := buf.String()
		assert.Contains(t, out, "INF")
		assert.Contains(t, out, "Worker started")
		assert.Contains(t, out, "worker-abc")
	})

	t.Run("unknown format falls back to json", func(t *testing.T) {
		l, buf := newBufferLogger(t, "info", "logfmt")

		l.Info("Server started", slog.Int("port", 8080))

		entries := decodeLines(t, buf.Bytes())
		require.Len(t, entries, 1)
		assert.Equal(t, float64(8080), entries[0]["port"])
	})

	t.Run("source location", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l, err := New(&Config{Level: "info", Format: "json", EnableSource: true, writer: buf})
		require.NoError(t, err)

		l.Info("Job queue ready")

		entries := decodeLines(t, buf.Bytes())
		require.Len(t, entries, 1)
		source, ok := entries[0]["source"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, source["file"], "logger_test.go")
	})
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")

	first, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	first.Info("Processing job", slog.String("job_id", "job-1"))
	require.NoError(t, first.Close())

	// a restart appends to the same file
	second, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	second.Info("Processing job", slog.String("job_id", "job-2"))
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	entries := decodeLines(t, data)
	require.Len(t, entries, 2)
	assert.Equal(t, "job-1", entries[0]["job_id"])
	assert.Equal(t, "job-2", entries[1]["job_id"])
}

func TestNew_ConsoleFileHasNoColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")

	l, err := New(&Config{Level: "info", Format: "console", Output: path})
	require.NoError(t, err)
	l.Warn("Job status update rejected", slog.String("current_status", "failed"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Job status update rejected")
	assert.NotContains(t, string(data), "\x1b[")
}

func TestNew_UnwritableFile(t *testing.T) {
	l, err := New(&Config{
		Level:  "info",
		Format: "json",
		Output: filepath.Join(t.TempDir(), "missing", "dir", "service.log"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
	assert.Nil(t, l)
}

func TestLogger_CloseWithoutFile(t *testing.T) {
	l, _ := newBufferLogger(t, "info", "json")
	assert.NoError(t, l.Close())
	assert.NoError(t, NewDefault().Close())
}

func TestLogger_DerivedLoggers(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	workerLogger := l.With(slog.String("worker_id", "worker-1"))
	jobLogger := workerLogger.WithAttrs(slog.String("job_id", "job-7"), slog.String("action", "generate_invoice"))
	jobLogger.Info("Job execution completed")

	l.WithGroup("queue").Info("Message settled", slog.String("outcome", "handled"))

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 2)

	assert.Equal(t, "worker-1", entries[0]["worker_id"])
	assert.Equal(t, "job-7", entries[0]["job_id"])
	assert.Equal(t, "generate_invoice", entries[0]["action"])

	group, ok := entries[1]["queue"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "handled", group["outcome"])
	assert.NotContains(t, entries[1], "worker_id")
}

func TestDiscard(t *testing.T) {
	l := Discard()
	require.NotNil(t, l)
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}
