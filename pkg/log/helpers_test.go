package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// createTestLogger returns a helper writing JSON lines to a buffer.
func createTestLogger() (*LogHelper, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			MessageKey:  "msg",
			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,
		}),
		zapcore.AddSync(buf),
		zapcore.DebugLevel,
	)
	return NewLogHelper(NewKratosAdapter(zap.New(core))), buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestLogHelper_TypedMethods(t *testing.T) {
	tests := []struct {
		name      string
		call      func(h *LogHelper)
		wantType  string
		wantLevel string
	}{
		{"pool", func(h *LogHelper) { h.Pool("proxy added", "proxy", "10.0.0.1:8080") }, "pool", "info"},
		{"cooldown", func(h *LogHelper) { h.Cooldown("cooling down") }, "cooldown", "warn"},
		{"ban", func(h *LogHelper) { h.Ban("banned") }, "ban", "warn"},
		{"database", func(h *LogHelper) { h.Database("saved") }, "database", "debug"},
		{"redis", func(h *LogHelper) { h.Redis("marker set") }, "redis", "debug"},
		{"cron", func(h *LogHelper) { h.Cron("job started") }, "cron", "info"},
		{"startup", func(h *LogHelper) { h.Startup("listening") }, "startup", "info"},
		{"selection", func(h *LogHelper) { h.Selection("10.0.0.1:8080", "random") }, "selection", "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, buf := createTestLogger()
			tt.call(h)
			entry := lastEntry(t, buf)
			assert.Equal(t, tt.wantType, entry["type"])
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.NotEmpty(t, entry["msg"])
		})
	}
}

func TestLogHelper_Probe(t *testing.T) {
	h, buf := createTestLogger()

	h.Probe("10.0.0.1:8080", false, 0)
	entry := lastEntry(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, false, entry["healthy"])

	h.Probe("10.0.0.1:8080", true, 12.5)
	entry = lastEntry(t, buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, 12.5, entry["latency_ms"])
}

func TestLogHelper_HealthBatch(t *testing.T) {
	h, buf := createTestLogger()
	h.HealthBatch(4, 3, 1, 21.5, 0.75)

	entry := lastEntry(t, buf)
	assert.Equal(t, "health_batch", entry["type"])
	assert.EqualValues(t, 4, entry["total"])
	assert.EqualValues(t, 3, entry["healthy"])
	assert.Contains(t, entry["msg"], "3/4 healthy")
}

func TestLogHelper_RequestWithContext(t *testing.T) {
	h, buf := createTestLogger()
	ctx := WithRequestContext(context.Background(), "abc123", "/proxies/next", "127.0.0.1")

	h.RequestWithContext(ctx, "GET", "/api/proxies/next", 200, 5, 1000)
	entry := lastEntry(t, buf)
	assert.Equal(t, "request", entry["type"])
	assert.Equal(t, "abc123", entry["request_id"])
	assert.EqualValues(t, 200, entry["status"])

	h.RequestWithContext(ctx, "GET", "/api/proxies/next", 200, 1500, 1000)
	entry = lastEntry(t, buf)
	assert.Equal(t, "slow_request", entry["type"])
	assert.Equal(t, "warn", entry["level"])
}
