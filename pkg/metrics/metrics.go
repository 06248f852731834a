// Package metrics defines the Prometheus metrics exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Selection and live-traffic metrics
var (
	SelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxylane_selections_total",
			Help: "Total number of proxy selections",
		},
		[]string{"strategy", "result"},
	)

	ReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxylane_reports_total",
			Help: "Total number of success/failure reports from callers",
		},
		[]string{"result"},
	)

	CooldownsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proxylane_cooldowns_total",
			Help: "Total number of times a proxy entered cooldown",
		},
	)

	ResponseTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "proxylane_response_time_seconds",
			Help:    "Response times reported by callers",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
)

// Health-check metrics
var (
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxylane_probes_total",
			Help: "Total number of health probes",
		},
		[]string{"protocol", "result"},
	)

	ProbeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proxylane_probe_latency_seconds",
			Help:    "Latency of successful health probes",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"protocol"},
	)

	BansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proxylane_bans_total",
			Help: "Total number of proxies banned by health checks",
		},
	)

	HealthCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "proxylane_health_check_duration_seconds",
			Help:    "Wall-clock duration of health-check batches",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)

// Pool gauges, refreshed after every mutation batch
var (
	PoolProxies = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "proxylane_pool_proxies",
			Help: "Number of proxies in the pool by state",
		},
		[]string{"state"},
	)
)

// Pool states used as label values of PoolProxies.
const (
	StateTotal       = "total"
	StateAvailable   = "available"
	StateCoolingDown = "cooling_down"
	StateBanned      = "banned"
	StateActive      = "active"
)

// SetPool publishes pool counts.
func SetPool(total, available, coolingDown, banned, active int) {
	PoolProxies.WithLabelValues(StateTotal).Set(float64(total))
	PoolProxies.WithLabelValues(StateAvailable).Set(float64(available))
	PoolProxies.WithLabelValues(StateCoolingDown).Set(float64(coolingDown))
	PoolProxies.WithLabelValues(StateBanned).Set(float64(banned))
	PoolProxies.WithLabelValues(StateActive).Set(float64(active))
}
