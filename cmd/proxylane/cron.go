package main

import (
	"context"
	"time"

	"ProxyLane/internal/biz"
	"ProxyLane/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

const (
	healthRefreshSpec = "@every 15s"
	healthCheckBudget = 30 * time.Minute
	flushBudget       = time.Minute
)

// StartPoolCron starts the periodic pool jobs: health checks, snapshot flushes and the
// refresh of the gRPC serving status. It returns nil when a job cannot be registered.
func StartPoolCron(task *biz.PoolTask, health *service.HealthService, logger log.Logger) *cron.Cron {
	helper := log.NewHelper(logger)

	// Overlapping runs of the same job are skipped
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if task.HealthCheckEnabled() {
		_, err := c.AddFunc(task.HealthCheckSpec(), func() {
			ctx, cancel := context.WithTimeout(context.Background(), healthCheckBudget)
			defer cancel()

			if err := task.RunHealthCheck(ctx); err != nil {
				helper.Errorw("health check task failed", "error", err)
			}
			health.Refresh()
		})
		if err != nil {
			helper.Errorw("failed to register health check cron job", "spec", task.HealthCheckSpec(), "error", err)
			return nil
		}
	} else {
		helper.Info("Periodic health checks disabled")
	}

	_, err := c.AddFunc(task.FlushSpec(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), flushBudget)
		defer cancel()

		if err := task.FlushSnapshot(ctx); err != nil {
			helper.Errorw("snapshot flush task failed", "error", err)
		}
	})
	if err != nil {
		helper.Errorw("failed to register snapshot cron job", "spec", task.FlushSpec(), "error", err)
		return nil
	}

	if _, err := c.AddFunc(healthRefreshSpec, func() { health.Refresh() }); err != nil {
		helper.Errorw("failed to register health refresh cron job", "error", err)
		return nil
	}

	c.Start()
	helper.Infow("Pool cron jobs started",
		"health_check", task.HealthCheckSpec(),
		"flush", task.FlushSpec())

	return c
}
