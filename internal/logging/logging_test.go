package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/leengari/automanager/internal/config"
)

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, nil),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}
	logger := slog.New(h).With("table", "orders")

	logger.Info("row appended")
	logger.Warn("file missing")

	assert.Check(t, is.Contains(a.String(), "row appended"))
	assert.Check(t, is.Contains(a.String(), "file missing"))
	assert.Check(t, !strings.Contains(b.String(), "row appended"), "json sink filters below warn")
	assert.Check(t, is.Contains(b.String(), `"table":"orders"`))
}

func TestFileSinkFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := slog.New(zapslog.NewHandler(core)).With("component", "store").WithGroup("op")

	logger.Info("store_event",
		slog.String("table", "orders"),
		slog.Int("row_count", 3),
		slog.Any("error", errors.New("boom")),
		slog.Group("snapshot", slog.String("id", "abc")),
	)

	entries := logs.All()
	assert.Equal(t, len(entries), 1)
	assert.Equal(t, entries[0].Message, "store_event")
	assert.Equal(t, entries[0].Level, zapcore.InfoLevel)

	ctx := entries[0].ContextMap()
	assert.Equal(t, ctx["component"], "store")
	op, ok := ctx["op"].(map[string]any)
	assert.Assert(t, ok, "groups nest: %v", ctx)
	assert.Equal(t, op["table"], "orders")
	assert.Equal(t, op["row_count"], int64(3))
	assert.Equal(t, op["error"], "boom")
	assert.DeepEqual(t, op["snapshot"], map[string]any{"id": "abc"})
}

func TestFileSinkLevels(t *testing.T) {
	core, logs := observer.New(zapLevel(slog.LevelWarn))
	logger := slog.New(zapslog.NewHandler(core))

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown")

	assert.Equal(t, logs.Len(), 2)
}

func TestSetupLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "automanager.log")
	var console bytes.Buffer

	logger, closeFn := setupLogger(config.LoggingConfig{Level: "info", File: path}, &console)
	logger.Info("table created", slog.String("table", "orders"))
	logger.Debug("not written")
	closeFn()

	assert.Check(t, is.Contains(console.String(), "table created"))

	raw, err := os.ReadFile(path)
	assert.NilError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, len(lines), 1)

	var line map[string]any
	assert.NilError(t, json.Unmarshal([]byte(lines[0]), &line))
	assert.Equal(t, line["msg"], "table created")
	assert.Equal(t, line["level"], "info")
	assert.Equal(t, line["table"], "orders")
}

func TestSetupLoggerConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closeFn := setupLogger(config.LoggingConfig{Level: "warn"}, &console)
	defer closeFn()

	_, isMulti := logger.Handler().(*multiHandler)
	assert.Check(t, !isMulti)

	logger.Info("quiet")
	logger.Warn("loud")
	assert.Check(t, !strings.Contains(console.String(), "quiet"))
	assert.Check(t, is.Contains(console.String(), "loud"))
}
