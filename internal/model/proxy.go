// Package model holds the domain types shared by the biz and data layers.
package model

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Protocol is the wire protocol spoken by a proxy.
type Protocol string

// Supported proxy protocols.
const (
	ProtocolHTTP   Protocol = "http"
	ProtocolHTTPS  Protocol = "https"
	ProtocolSOCKS5 Protocol = "socks5"
)

// HealthStatus is the health-check view of a proxy.
//
// Only the health-check engine moves a record between these values; live traffic never
// touches the status (it drives the cooldown fields instead). The one exception is a
// manual ban reset, which returns a BANNED record to UNCHECKED.
type HealthStatus string

// Health status values.
const (
	StatusUnchecked HealthStatus = "unchecked" // added, never probed
	StatusChecking  HealthStatus = "checking"  // probe in flight
	StatusActive    HealthStatus = "active"    // last probe succeeded
	StatusInactive  HealthStatus = "inactive"  // last probe failed, below ban threshold
	StatusBanned    HealthStatus = "banned"    // terminal until ResetBan
)

// Identity is the pool key of a proxy. Two records with the same address and port are the
// same proxy regardless of protocol or credentials.
type Identity struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// String renders the identity as "address:port".
func (id Identity) String() string {
	return net.JoinHostPort(id.Address, strconv.Itoa(id.Port))
}

// ProxyRecord is the unit of state tracked for every proxy in the pool.
type ProxyRecord struct {
	Address  string   `json:"address"`
	Port     int      `json:"port"`
	Protocol Protocol `json:"protocol"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"-"`
	Country  string   `json:"country,omitempty"`
	Weight   int      `json:"weight"`

	// Live-traffic counters, owned by the rotation scheduler.
	TotalRequests       int64     `json:"total_requests"`
	SuccessfulRequests  int64     `json:"successful_requests"`
	FailedRequests      int64     `json:"failed_requests"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	AvgResponseTimeMs   float64   `json:"avg_response_time_ms"`
	LastUsed            time.Time `json:"last_used"`
	LastSuccess         time.Time `json:"last_success"`

	// Cooldown window, entered after repeated live-traffic failures.
	IsCoolingDown bool      `json:"is_cooling_down"`
	CooldownUntil time.Time `json:"cooldown_until"`

	// Health-probe state, owned by the health-check engine.
	Status                   HealthStatus `json:"status"`
	LatencyMs                float64      `json:"latency_ms"`
	ProbeSuccesses           int64        `json:"probe_successes"`
	ProbeFailures            int64        `json:"probe_failures"`
	ConsecutiveProbeFailures int          `json:"consecutive_probe_failures"`
	LastCheckedAt            time.Time    `json:"last_checked_at"`

	CreatedAt time.Time `json:"created_at"`
}

// ID returns the pool key of the record.
func (p *ProxyRecord) ID() Identity {
	return Identity{Address: p.Address, Port: p.Port}
}

// URL returns the proxy URL, including credentials when both are set.
func (p *ProxyRecord) URL() string {
	u := url.URL{
		Scheme: string(p.Protocol),
		Host:   p.ID().String(),
	}
	if p.Username != "" && p.Password != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u.String()
}

// SuccessRatio is successful/(successful+failed) live requests, 0 when nothing was reported.
func (p *ProxyRecord) SuccessRatio() float64 {
	attempts := p.SuccessfulRequests + p.FailedRequests
	if attempts == 0 {
		return 0
	}
	return float64(p.SuccessfulRequests) / float64(attempts)
}

// SuccessRate is SuccessRatio expressed as a percentage.
func (p *ProxyRecord) SuccessRate() float64 {
	return p.SuccessRatio() * 100
}

// Clone returns an independent copy of the record.
func (p *ProxyRecord) Clone() *ProxyRecord {
	c := *p
	return &c
}

// String is used in log lines; it never includes the password.
func (p *ProxyRecord) String() string {
	return fmt.Sprintf("%s://%s", p.Protocol, p.ID())
}

// HealthCheckResult aggregates one batch run of the health-check engine.
type HealthCheckResult struct {
	Total           int       `json:"total"`
	Healthy         int       `json:"healthy"`
	Unhealthy       int       `json:"unhealthy"`
	AvgLatencyMs    float64   `json:"avg_latency_ms"`
	DurationSeconds float64   `json:"duration_seconds"`
	FinishedAt      time.Time `json:"finished_at"`
}

// PoolCounts summarises the pool for stats and readiness reporting.
type PoolCounts struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	CoolingDown int `json:"cooling_down"`
	Banned      int `json:"banned"`
	Active      int `json:"active"`
}
