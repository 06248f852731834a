// Package biz contains the proxy rotation scheduler, the health-check engine and the
// usecase that exposes them to the service layer.
package biz

import (
	"ProxyLane/internal/data"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewSchedulerFromConfig,
	NewHTTPProberFromConfig,
	NewHealthCheckerFromConfig,
	NewProxyUsecase,
	NewPoolTask,
	wire.Bind(new(Prober), new(*HTTPProber)),
	// Import data layer providers
	data.NewProxyRepo,
	data.NewCooldownStore,
	data.NewHealthResultStore,
	data.NewAuditLogger,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(ProxyRepo), new(*data.ProxyRepo)),
	wire.Bind(new(CooldownMarker), new(*data.CooldownStore)),
	wire.Bind(new(HealthResultCache), new(*data.HealthResultStore)),
	wire.Bind(new(AuditLogger), new(*data.AuditLoggerImpl)),
)
