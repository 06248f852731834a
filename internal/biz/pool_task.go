package biz

import (
	"context"
	"fmt"
	"time"

	"ProxyLane/internal/conf"
	pkgerrors "ProxyLane/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// PoolTask holds the periodic jobs of the pool: health checks and snapshot flushes.
type PoolTask struct {
	uc                  *ProxyUsecase
	healthCheckEnabled  bool
	healthCheckInterval time.Duration
	flushInterval       time.Duration
	logger              *log.Helper
}

// NewPoolTask creates the periodic pool jobs.
func NewPoolTask(uc *ProxyUsecase, hc *conf.HealthCheck, p *conf.Proxy, logger log.Logger) *PoolTask {
	t := &PoolTask{
		uc:                  uc,
		healthCheckEnabled:  true,
		healthCheckInterval: 300 * time.Second,
		flushInterval:       time.Minute,
		logger:              log.NewHelper(logger),
	}
	if hc != nil {
		t.healthCheckEnabled = hc.Enabled
		if d := hc.Interval.AsDuration(); d > 0 {
			t.healthCheckInterval = d
		}
	}
	if p != nil {
		if d := p.FlushInterval.AsDuration(); d > 0 {
			t.flushInterval = d
		}
	}
	return t
}

// HealthCheckEnabled reports whether periodic health checks should be scheduled.
func (t *PoolTask) HealthCheckEnabled() bool { return t.healthCheckEnabled }

// HealthCheckSpec is the cron spec of the health-check job.
func (t *PoolTask) HealthCheckSpec() string {
	return fmt.Sprintf("@every %s", t.healthCheckInterval)
}

// FlushSpec is the cron spec of the snapshot job.
func (t *PoolTask) FlushSpec() string {
	return fmt.Sprintf("@every %s", t.flushInterval)
}

// RunHealthCheck probes the pool once with the configured concurrency. Ending ctx stops
// new probes from starting; started probes finish on their own timeout.
func (t *PoolTask) RunHealthCheck(ctx context.Context) error {
	if t.uc.sched.Len() == 0 {
		t.logger.Info("No proxies to health check")
		return nil
	}
	result := t.uc.RunHealthCheck(ctx, 0)
	t.logger.Infow("Health check task completed",
		"total", result.Total,
		"healthy", result.Healthy,
		"unhealthy", result.Unhealthy)
	return nil
}

// FlushSnapshot persists live counters. Retryable database errors are retried once.
func (t *PoolTask) FlushSnapshot(ctx context.Context) error {
	err := t.uc.FlushSnapshot(ctx)
	if err != nil && pkgerrors.IsRetryable(err) {
		t.logger.Warnw("snapshot flush failed, retrying", "error", err)
		err = t.uc.FlushSnapshot(ctx)
	}
	return err
}
