package biz

import (
	"context"

	"ProxyLane/internal/model"
)

// AuditLogger records pool changes in a durable journal. Calls must not block the caller;
// implementations drop events rather than wait.
type AuditLogger interface {
	// LogProxyAdded logs a proxy joining the pool
	LogProxyAdded(ctx context.Context, rec *model.ProxyRecord)

	// LogProxyRemoved logs a proxy leaving the pool
	LogProxyRemoved(ctx context.Context, id model.Identity)

	// LogCooldownStarted logs live-traffic failures taking a proxy out of rotation
	LogCooldownStarted(ctx context.Context, ev *model.CooldownEvent)

	// LogProxyBanned logs a ban by the health-check engine
	LogProxyBanned(ctx context.Context, ev *model.BanEvent)

	// LogBanReset logs a manual ban reset
	LogBanReset(ctx context.Context, id model.Identity)
}
