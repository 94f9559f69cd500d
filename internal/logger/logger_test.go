package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleLoggerTextOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cl := NewWriterLogger(&buf, LogLevelDebug)
	log := cl.Module("docstore")

	log.Info("Document written",
		String("path", "/a/b.excalidraw"),
		Int("bytes", 42),
		Duration("elapsed", 1500*time.Millisecond),
		Error(errors.New("boom now")))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "INFO  [docstore] Document written"), out)
	assert.Contains(t, out, "path=/a/b.excalidraw")
	assert.Contains(t, out, "bytes=42")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.Contains(t, out, `error="boom now"`)
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriterLogger(&buf, LogLevelWarn).Module("api")

	log.Debug("hidden")
	log.Info("hidden")
	log.Trace("hidden")
	log.Warn("shown")
	log.Log(LogLevelInfo, "hidden")
	log.Log(LogLevelError, "also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "also shown")
}

func TestSubModuleAndWith(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	parent := NewWriterLogger(&buf, LogLevelInfo).Module("api").With(String("request_id", "r-1"))
	child := parent.Module("drawing")

	child.Info("served")
	out := buf.String()
	assert.Contains(t, out, "[api.drawing]")
	assert.Contains(t, out, "request_id=r-1")
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriterLogger(&buf, LogLevelInfo).Module("drawpad")

	log.WithContext(WithTraceID(t.Context(), "trace-9")).Info("saved")
	assert.Contains(t, buf.String(), "trace_id=trace-9")

	buf.Reset()
	log.WithContext(t.Context()).Info("saved")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mainPath := filepath.Join(dir, "logs", "main.log")
	modulePath := filepath.Join(dir, "logs", "securefs.log")

	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: mainPath, Level: "debug"},
		ModuleOutputs: map[string]ModuleOutput{
			"securefs": {Enabled: true, FilePath: modulePath, Level: "warn"},
		},
	})
	require.NoError(t, err)

	cl.Module("docstore").Debug("listed", Int("entries", 3))
	cl.Module("securefs").Info("ignored below warn")
	cl.Module("securefs").Warn("escape attempt", String("path", "/../etc"))

	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())

	mainData, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(mainData), &rec))
	assert.Equal(t, "listed", rec["msg"])
	assert.Equal(t, "docstore", rec["module"])
	assert.InDelta(t, 3, rec["entries"], 0)

	moduleData, err := os.ReadFile(modulePath)
	require.NoError(t, err)
	assert.NotContains(t, string(moduleData), "ignored below warn")
	assert.Contains(t, string(moduleData), "escape attempt")
}

func TestNewCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestMultiWriterRespectsPerHandlerLevel(t *testing.T) {
	t.Parallel()

	var quiet, loud bytes.Buffer
	h := newMultiWriterHandler(
		newTextHandler(&quiet, parseLogLevel("error"), time.UTC),
		newTextHandler(&loud, parseLogLevel("debug"), time.UTC),
	)
	ml := &moduleLogger{module: "x", logger: slog.New(h), level: parseLogLevel("debug")}
	ml.Debug("detail")

	assert.Empty(t, quiet.String())
	assert.Contains(t, loud.String(), "detail")
}
