// Package service exposes the proxy usecase over HTTP and gRPC health.
package service

import "github.com/google/wire"

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewProxyService, NewHealthService)
