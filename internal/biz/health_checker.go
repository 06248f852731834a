package biz

import (
	"context"
	"math"
	"sync"
	"time"

	"ProxyLane/internal/conf"
	"ProxyLane/internal/model"
	plog "ProxyLane/pkg/log"
	"ProxyLane/pkg/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/semaphore"
)

// HealthCheckConfig holds the ban policy and the default batch width.
type HealthCheckConfig struct {
	// BanThreshold is the number of consecutive failed probes that bans a proxy.
	BanThreshold int
	// Concurrency is the batch width used when the caller passes none.
	Concurrency int
}

// HealthChecker probes proxies and records the outcomes through the scheduler.
type HealthChecker struct {
	sched  *Scheduler
	prober Prober
	cfg    HealthCheckConfig
	onBan  func(context.Context, *model.BanEvent)
	log    *plog.LogHelper
}

// NewHealthChecker creates a health-check engine bound to sched.
func NewHealthChecker(sched *Scheduler, prober Prober, cfg HealthCheckConfig, logger log.Logger) *HealthChecker {
	if cfg.BanThreshold < 1 {
		cfg.BanThreshold = 3
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 20
	}
	return &HealthChecker{
		sched:  sched,
		prober: prober,
		cfg:    cfg,
		log:    plog.NewLogHelper(logger),
	}
}

// NewHealthCheckerFromConfig wires the engine from the health_check configuration section.
func NewHealthCheckerFromConfig(c *conf.HealthCheck, sched *Scheduler, prober Prober, logger log.Logger) *HealthChecker {
	return NewHealthChecker(sched, prober, HealthCheckConfig{
		BanThreshold: int(c.MaxFailures),
		Concurrency:  int(c.Concurrency),
	}, logger)
}

// OnBan registers fn to run for every ban. It must be called before the first probe.
func (h *HealthChecker) OnBan(fn func(context.Context, *model.BanEvent)) {
	h.onBan = fn
}

// CheckOne probes rec and records the outcome. It reports whether the probe succeeded.
// Banned or removed proxies are not probed and report false. When ctx is already done
// the proxy is not probed and its status is left as it was.
func (h *HealthChecker) CheckOne(ctx context.Context, rec *model.ProxyRecord) bool {
	if ctx.Err() != nil {
		return false
	}
	id := rec.ID()
	if !h.sched.MarkChecking(id) {
		return false
	}

	// The scheduler lock is not held here
	outcome := h.prober.Probe(ctx, rec)

	status, ban, ok := h.sched.RecordProbe(id, outcome, h.cfg.BanThreshold)
	if !ok {
		// Removed while the probe was in flight
		return outcome.Healthy
	}

	protocol := string(rec.Protocol)
	if outcome.Healthy {
		metrics.ProbesTotal.WithLabelValues(protocol, "healthy").Inc()
		metrics.ProbeLatency.WithLabelValues(protocol).Observe(outcome.LatencyMs / 1000)
	} else {
		metrics.ProbesTotal.WithLabelValues(protocol, "unhealthy").Inc()
	}

	if outcome.Err != nil {
		h.log.Probe(rec.String(), outcome.Healthy, outcome.LatencyMs, "status", string(status), "error", outcome.Err)
	} else {
		h.log.Probe(rec.String(), outcome.Healthy, outcome.LatencyMs, "status", string(status))
	}
	if ban != nil {
		metrics.BansTotal.Inc()
		h.log.Ban("proxy banned after consecutive probe failures",
			"proxy", rec.String(),
			"consecutive_probe_failures", ban.ConsecutiveProbeFailures)
		if h.onBan != nil {
			h.onBan(ctx, ban)
		}
	}

	return outcome.Healthy
}

// CheckBatch probes every record with at most maxConcurrency probes in flight and waits
// for all of them. A non-positive maxConcurrency uses the configured width. Probes that
// have started run to their own timeout even if ctx ends; probes not yet started when
// ctx ends are skipped, leave the proxy status untouched and count as unhealthy.
func (h *HealthChecker) CheckBatch(ctx context.Context, records []*model.ProxyRecord, maxConcurrency int) model.HealthCheckResult {
	if maxConcurrency < 1 {
		maxConcurrency = h.cfg.Concurrency
	}

	start := time.Now()
	sem := semaphore.NewWeighted(int64(maxConcurrency))
	results := make([]bool, len(records))

	var wg sync.WaitGroup
	for i, rec := range records {
		wg.Add(1)
		go func(i int, rec *model.ProxyRecord) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			results[i] = h.CheckOne(ctx, rec)
		}(i, rec)
	}
	wg.Wait()

	result := model.HealthCheckResult{Total: len(records)}
	for _, ok := range results {
		if ok {
			result.Healthy++
		}
	}
	result.Unhealthy = result.Total - result.Healthy

	// Average over the batch members that are ACTIVE now, not only this run's successes
	var sum float64
	var active int
	for _, rec := range records {
		cur, ok := h.sched.Get(rec.ID())
		if !ok || cur.Status != model.StatusActive {
			continue
		}
		sum += cur.LatencyMs
		active++
	}
	if active > 0 {
		result.AvgLatencyMs = round2(sum / float64(active))
	}

	elapsed := time.Since(start)
	result.DurationSeconds = round2(elapsed.Seconds())
	result.FinishedAt = time.Now()

	metrics.HealthCheckDuration.Observe(elapsed.Seconds())
	h.log.HealthBatch(result.Total, result.Healthy, result.Unhealthy, result.AvgLatencyMs, result.DurationSeconds,
		"concurrency", maxConcurrency)

	return result
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
