package data

import (
	"context"
	"errors"

	"ProxyLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// HealthResultStore caches the most recent health-check batch result.
type HealthResultStore struct {
	cache  CacheClient
	logger *log.Helper
}

// NewHealthResultStore creates a health result store on top of the shared cache.
func NewHealthResultStore(data *Data, logger log.Logger) *HealthResultStore {
	return &HealthResultStore{
		cache:  data.GetCache(),
		logger: log.NewHelper(logger),
	}
}

// SaveLastResult replaces the cached batch result.
func (s *HealthResultStore) SaveLastResult(ctx context.Context, result *model.HealthCheckResult) error {
	if err := s.cache.Set(ctx, KeyLastHealthResult, result, TTLHealthResult); err != nil {
		s.logger.Warnw("failed to cache health check result", "error", err)
		return err
	}
	return nil
}

// LastResult returns the cached batch result, or nil when none is cached.
func (s *HealthResultStore) LastResult(ctx context.Context) (*model.HealthCheckResult, error) {
	var result model.HealthCheckResult
	if err := s.cache.Get(ctx, KeyLastHealthResult, &result); err != nil {
		if errors.Is(err, ErrCacheNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}
