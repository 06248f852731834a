package data

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ProxyLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_WritesEvents(t *testing.T) {
	d := newDryRunDB(t)
	audit, cleanup := NewAuditLogger(d.db, log.DefaultLogger)
	ctx := context.Background()
	id := model.Identity{Address: "10.0.0.1", Port: 8080}
	until := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)

	audit.LogProxyAdded(ctx, &model.ProxyRecord{Address: id.Address, Port: id.Port, Protocol: model.ProtocolHTTP, Weight: 2})
	audit.LogCooldownStarted(ctx, &model.CooldownEvent{ID: id, ConsecutiveFailures: 3, CooldownUntil: until})
	audit.LogProxyBanned(ctx, &model.BanEvent{ID: id, ConsecutiveProbeFailures: 3, BannedAt: until})
	audit.LogBanReset(ctx, id)
	audit.LogProxyRemoved(ctx, id)

	// Drains the queue
	cleanup()

	require.Len(t, d.sql, 5)
	for _, sql := range d.sql {
		assert.Contains(t, sql, "INSERT INTO `proxy_events`")
	}

	var types []string
	for _, vars := range d.vars {
		for _, v := range vars {
			if s, ok := v.(string); ok && isAuditEventType(s) {
				types = append(types, s)
			}
		}
	}
	assert.Equal(t, []string{
		"PROXY_ADDED", "COOLDOWN_STARTED", "PROXY_BANNED", "BAN_RESET", "PROXY_REMOVED",
	}, types)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(findDetails(t, d.vars[1])), &details))
	assert.Equal(t, float64(3), details["consecutive_failures"])
	assert.Equal(t, "2026-03-01T12:05:00Z", details["cooldown_until"])
}

func TestAuditLogger_DropsAfterClose(t *testing.T) {
	d := newDryRunDB(t)
	audit, cleanup := NewAuditLogger(d.db, log.DefaultLogger)

	cleanup()
	cleanup()

	assert.NotPanics(t, func() {
		audit.LogBanReset(context.Background(), model.Identity{Address: "10.0.0.1", Port: 1})
	})
	assert.Empty(t, d.sql)
}

func isAuditEventType(s string) bool {
	switch AuditEventType(s) {
	case AuditEventProxyAdded, AuditEventProxyRemoved, AuditEventCooldownStarted,
		AuditEventProxyBanned, AuditEventBanReset:
		return true
	}
	return false
}

func findDetails(t *testing.T, vars []interface{}) string {
	t.Helper()
	for _, v := range vars {
		if s, ok := v.(string); ok && len(s) > 0 && s[0] == '{' {
			return s
		}
	}
	t.Fatal("no details column in statement")
	return ""
}
