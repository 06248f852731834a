package log

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
)

// LogHelper extends the Kratos log.Helper with typed methods. Each adds a "type" field,
// which the EmojiConsoleEncoder maps to an emoji.
type LogHelper struct {
	*log.Helper
}

// NewLogHelper creates a LogHelper.
func NewLogHelper(logger log.Logger) *LogHelper {
	return &LogHelper{
		Helper: log.NewHelper(logger),
	}
}

func withType(msg, typ string, kvs []interface{}) []interface{} {
	all := make([]interface{}, 0, len(kvs)+4)
	all = append(all, "msg", msg)
	all = append(all, kvs...)
	return append(all, "type", typ)
}

// Pool logs membership changes of the proxy pool.
func (h *LogHelper) Pool(msg string, kvs ...interface{}) {
	h.Infow(withType(msg, "pool", kvs)...)
}

// Selection logs a scheduler pick at debug level.
func (h *LogHelper) Selection(proxy, strategy string, kvs ...interface{}) {
	msg := fmt.Sprintf("selected %s via %s", proxy, strategy)
	h.Debugw(withType(msg, "selection", append(kvs, "proxy", proxy, "strategy", strategy))...)
}

// Cooldown logs a proxy entering cooldown.
func (h *LogHelper) Cooldown(msg string, kvs ...interface{}) {
	h.Warnw(withType(msg, "cooldown", kvs)...)
}

// Probe logs a single health probe outcome.
func (h *LogHelper) Probe(proxy string, healthy bool, latencyMs float64, kvs ...interface{}) {
	msg := fmt.Sprintf("probe %s healthy=%t latency=%.2fms", proxy, healthy, latencyMs)
	all := withType(msg, "probe", append(kvs, "proxy", proxy, "healthy", healthy, "latency_ms", latencyMs))
	if healthy {
		h.Debugw(all...)
		return
	}
	h.Infow(all...)
}

// Ban logs a proxy banned by the health-check engine.
func (h *LogHelper) Ban(msg string, kvs ...interface{}) {
	h.Warnw(withType(msg, "ban", kvs)...)
}

// HealthBatch logs the summary of a health-check run.
func (h *LogHelper) HealthBatch(total, healthy, unhealthy int, avgLatencyMs, durationSeconds float64, kvs ...interface{}) {
	msg := fmt.Sprintf("health check finished: %d/%d healthy, avg latency %.2fms in %.2fs",
		healthy, total, avgLatencyMs, durationSeconds)
	all := withType(msg, "health_batch", append(kvs,
		"total", total,
		"healthy", healthy,
		"unhealthy", unhealthy,
		"avg_latency_ms", avgLatencyMs,
		"duration_seconds", durationSeconds,
	))
	h.Infow(all...)
}

// Database logs database operations at debug level.
func (h *LogHelper) Database(msg string, kvs ...interface{}) {
	h.Debugw(withType(msg, "database", kvs)...)
}

// Redis logs Redis operations at debug level.
func (h *LogHelper) Redis(msg string, kvs ...interface{}) {
	h.Debugw(withType(msg, "redis", kvs)...)
}

// Cron logs scheduled job runs.
func (h *LogHelper) Cron(msg string, kvs ...interface{}) {
	h.Infow(withType(msg, "cron", kvs)...)
}

// Startup logs process startup steps.
func (h *LogHelper) Startup(msg string, kvs ...interface{}) {
	h.Infow(withType(msg, "startup", kvs)...)
}

// RequestWithContext logs a finished API request and warns when it exceeded slowMs.
func (h *LogHelper) RequestWithContext(ctx context.Context, method, path string, status int, durationMs, slowMs int64, kvs ...interface{}) {
	reqCtx := GetRequestContext(ctx)
	msg := fmt.Sprintf("%s %s - %d (%dms)", method, path, status, durationMs)
	h.Infow(withType(msg, "request", append(kvs,
		"request_id", reqCtx.RequestID,
		"operation", reqCtx.Operation,
		"client_ip", reqCtx.ClientIP,
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", durationMs,
	))...)

	if slowMs > 0 && durationMs > slowMs {
		slow := fmt.Sprintf("[%s] slow request %s %s %dms (threshold %dms)", reqCtx.RequestID, method, path, durationMs, slowMs)
		h.Warnw(withType(slow, "slow_request", []interface{}{
			"request_id", reqCtx.RequestID,
			"duration_ms", durationMs,
			"threshold_ms", slowMs,
		})...)
	}
}
