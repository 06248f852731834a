package service

import (
	"context"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the gRPC service name whose status follows the pool size.
const HealthServiceName = "proxylane.v1.ProxyService"

// HealthService implements grpc.health.v1.Health. The status is SERVING while the pool
// holds at least the minimum number of available proxies.
type HealthService struct {
	*health.Server

	proxies *ProxyService
	logger  *log.Helper

	mu   sync.Mutex
	last healthpb.HealthCheckResponse_ServingStatus
}

// NewHealthService creates the gRPC health service.
func NewHealthService(proxies *ProxyService, logger log.Logger) *HealthService {
	return &HealthService{
		Server:  health.NewServer(),
		proxies: proxies,
		logger:  log.NewHelper(logger),
	}
}

// Check refreshes the status before answering.
func (s *HealthService) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	s.Refresh()
	return s.Server.Check(ctx, req)
}

// Refresh recomputes the serving status from the pool. Watchers are notified on change.
func (s *HealthService) Refresh() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.proxies.Healthy() {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if status != s.last {
		s.logger.Infow("health status changed", "from", s.last.String(), "to", status.String())
		s.last = status
	}
	s.SetServingStatus("", status)
	s.SetServingStatus(HealthServiceName, status)
	return status
}
