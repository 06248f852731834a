package model

import "time"

// CooldownEvent is emitted when live-traffic failures place a proxy into cooldown.
type CooldownEvent struct {
	ID                  Identity
	ConsecutiveFailures int
	CooldownUntil       time.Time
}

// BanEvent is emitted when health probes ban a proxy.
type BanEvent struct {
	ID                       Identity
	ConsecutiveProbeFailures int
	BannedAt                 time.Time
}

// ProbeOutcome is the result of a single health probe.
type ProbeOutcome struct {
	Healthy   bool
	LatencyMs float64
	// Err is kept for logging only; a failed probe is an outcome, not an error.
	Err error
}
