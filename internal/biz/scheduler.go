package biz

import (
	"math/rand"
	"sync"
	"time"

	"ProxyLane/internal/conf"
	"ProxyLane/internal/model"
	plog "ProxyLane/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
)

// SchedulerConfig holds the live-traffic failure policy.
type SchedulerConfig struct {
	// MaxFailures is the number of consecutive reported failures that starts a cooldown.
	MaxFailures int
	// Cooldown is how long a proxy stays out of rotation after MaxFailures.
	Cooldown time.Duration
}

// DefaultSchedulerConfig returns the defaults used when no configuration is given.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{MaxFailures: 3, Cooldown: 300 * time.Second}
}

// SchedulerOption customises a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock replaces time.Now, mainly for simulated time in tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// WithRand replaces the random source used by the random and weighted strategies.
func WithRand(rng *rand.Rand) SchedulerOption {
	return func(s *Scheduler) { s.rng = rng }
}

// Scheduler owns the proxy pool and decides which proxy serves the next request.
//
// A single mutex guards the pool, the round-robin cursor and the random source. Every
// mutation, including health-probe results, goes through it and it is never held across
// network I/O. Records handed out are copies.
type Scheduler struct {
	mu      sync.Mutex
	cfg     SchedulerConfig
	proxies map[model.Identity]*model.ProxyRecord
	order   []model.Identity
	rrIndex int
	rng     *rand.Rand
	now     func() time.Time
	log     *plog.LogHelper
}

// NewScheduler creates an empty scheduler.
func NewScheduler(cfg SchedulerConfig, logger log.Logger, opts ...SchedulerOption) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}

	s := &Scheduler{
		cfg:     cfg,
		proxies: make(map[model.Identity]*model.ProxyRecord),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
		log:     plog.NewLogHelper(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSchedulerFromConfig builds the scheduler from the proxy section of the configuration.
func NewSchedulerFromConfig(c *conf.Proxy, logger log.Logger) *Scheduler {
	cfg := DefaultSchedulerConfig()
	if c != nil {
		cfg.MaxFailures = int(c.MaxFailures)
		cfg.Cooldown = c.Cooldown.AsDuration()
	}
	return NewScheduler(cfg, logger)
}

// Config returns the failure policy in effect.
func (s *Scheduler) Config() SchedulerConfig {
	return s.cfg
}

// AddProxy inserts a copy of rec. Adding an identity that is already present fails with
// DuplicateProxyError and leaves the existing record untouched.
func (s *Scheduler) AddProxy(rec *model.ProxyRecord, weight int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := rec.ID()
	if _, ok := s.proxies[id]; ok {
		return &DuplicateProxyError{ID: id}
	}

	c := rec.Clone()
	if weight < 1 {
		weight = 1
	}
	c.Weight = weight
	if c.Status == "" {
		c.Status = model.StatusUnchecked
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}

	s.proxies[id] = c
	s.order = append(s.order, id)
	s.log.Pool("proxy added", "proxy", c.String(), "weight", weight, "pool_size", len(s.order))
	return nil
}

// Load restores previously persisted records, keeping their counters. Identities already
// in the pool are skipped. It returns the number of records added.
func (s *Scheduler) Load(records []*model.ProxyRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, rec := range records {
		id := rec.ID()
		if _, ok := s.proxies[id]; ok {
			continue
		}
		c := rec.Clone()
		if c.Weight < 1 {
			c.Weight = 1
		}
		if c.Status == "" || c.Status == model.StatusChecking {
			// A probe interrupted by a restart never reported back
			c.Status = model.StatusUnchecked
		}
		s.proxies[id] = c
		s.order = append(s.order, id)
		added++
	}
	return added
}

// RemoveProxy deletes the record. It reports false when id was not in the pool.
func (s *Scheduler) RemoveProxy(id model.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proxies[id]; !ok {
		return false
	}
	delete(s.proxies, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.log.Pool("proxy removed", "proxy", id.String(), "pool_size", len(s.order))
	return true
}

// SelectNext picks a proxy with strategy among the available ones and records the use.
// It returns ErrNoAvailableProxy when the pool is empty or every proxy is cooling down
// or banned.
func (s *Scheduler) SelectNext(strategy Strategy) (*model.ProxyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	avail := s.available(now)
	if len(avail) == 0 {
		s.log.Warnw("msg", "no available proxies", "pool_size", len(s.order), "strategy", strategy.String())
		return nil, ErrNoAvailableProxy
	}

	p := avail[s.pick(strategy, avail)]
	p.TotalRequests++
	p.LastUsed = now

	s.log.Selection(p.String(), strategy.String(), "total_requests", p.TotalRequests)
	return p.Clone(), nil
}

// ReportSuccess records a successful request through id with its response time in
// milliseconds. Unknown identities are ignored and reported as false.
func (s *Scheduler) ReportSuccess(id model.Identity, responseTimeMs float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proxies[id]
	if !ok {
		return false
	}

	p.SuccessfulRequests++
	p.ConsecutiveFailures = 0
	p.LastSuccess = s.now()
	p.AvgResponseTimeMs += (responseTimeMs - p.AvgResponseTimeMs) / float64(p.SuccessfulRequests)
	return true
}

// ReportFailure records a failed request through id. When the failure reaches the
// configured threshold the proxy (re)enters cooldown and the event is returned.
// Unknown identities are ignored and reported as ok=false.
func (s *Scheduler) ReportFailure(id model.Identity) (event *model.CooldownEvent, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proxies[id]
	if !ok {
		return nil, false
	}

	p.FailedRequests++
	p.ConsecutiveFailures++
	if p.ConsecutiveFailures < s.cfg.MaxFailures {
		return nil, true
	}

	p.IsCoolingDown = true
	p.CooldownUntil = s.now().Add(s.cfg.Cooldown)
	s.log.Cooldown("proxy cooling down",
		"proxy", p.String(),
		"consecutive_failures", p.ConsecutiveFailures,
		"cooldown_seconds", s.cfg.Cooldown.Seconds())

	return &model.CooldownEvent{
		ID:                  id,
		ConsecutiveFailures: p.ConsecutiveFailures,
		CooldownUntil:       p.CooldownUntil,
	}, true
}

// Get returns a copy of the record for id.
func (s *Scheduler) Get(id model.Identity) (*model.ProxyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proxies[id]
	if !ok {
		return nil, false
	}
	s.expireCooldown(p, s.now())
	return p.Clone(), true
}

// Stats returns copies of every record in insertion order.
func (s *Scheduler) Stats() []*model.ProxyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]*model.ProxyRecord, 0, len(s.order))
	for _, id := range s.order {
		p := s.proxies[id]
		s.expireCooldown(p, now)
		out = append(out, p.Clone())
	}
	return out
}

// Counts summarises the pool.
func (s *Scheduler) Counts() model.PoolCounts {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := model.PoolCounts{Total: len(s.order)}
	for _, id := range s.order {
		p := s.proxies[id]
		s.expireCooldown(p, now)
		switch {
		case p.Status == model.StatusBanned:
			c.Banned++
		case p.IsCoolingDown:
			c.CoolingDown++
		default:
			c.Available++
		}
		if p.Status == model.StatusActive {
			c.Active++
		}
	}
	return c
}

// Len returns the pool size.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// ResetBan returns a banned proxy to UNCHECKED. It reports false for unknown or
// non-banned identities.
func (s *Scheduler) ResetBan(id model.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proxies[id]
	if !ok || p.Status != model.StatusBanned {
		return false
	}
	p.Status = model.StatusUnchecked
	p.ConsecutiveProbeFailures = 0
	s.log.Pool("ban reset", "proxy", p.String())
	return true
}

// MarkChecking flags a probe in flight. Banned and unknown proxies are not probed and
// yield false.
func (s *Scheduler) MarkChecking(id model.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proxies[id]
	if !ok || p.Status == model.StatusBanned {
		return false
	}
	p.Status = model.StatusChecking
	return true
}

// RecordProbe applies a probe outcome. A success marks the proxy ACTIVE with the measured
// latency; a failure marks it INACTIVE, or BANNED once banThreshold consecutive probes
// have failed. Live-traffic counters and the cooldown window are left alone.
func (s *Scheduler) RecordProbe(id model.Identity, outcome model.ProbeOutcome, banThreshold int) (model.HealthStatus, *model.BanEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proxies[id]
	if !ok {
		return "", nil, false
	}
	if p.Status == model.StatusBanned {
		// Banned while the probe was in flight
		return p.Status, nil, true
	}

	now := s.now()
	p.LastCheckedAt = now

	if outcome.Healthy {
		p.Status = model.StatusActive
		p.LatencyMs = outcome.LatencyMs
		p.ProbeSuccesses++
		p.ConsecutiveProbeFailures = 0
		return p.Status, nil, true
	}

	p.ProbeFailures++
	p.ConsecutiveProbeFailures++
	if banThreshold > 0 && p.ConsecutiveProbeFailures >= banThreshold {
		p.Status = model.StatusBanned
		return p.Status, &model.BanEvent{
			ID:                       id,
			ConsecutiveProbeFailures: p.ConsecutiveProbeFailures,
			BannedAt:                 now,
		}, true
	}
	p.Status = model.StatusInactive
	return p.Status, nil, true
}

// available expires elapsed cooldowns and returns the selectable records in insertion
// order. Caller holds s.mu.
func (s *Scheduler) available(now time.Time) []*model.ProxyRecord {
	avail := make([]*model.ProxyRecord, 0, len(s.order))
	for _, id := range s.order {
		p := s.proxies[id]
		s.expireCooldown(p, now)
		if p.IsCoolingDown || p.Status == model.StatusBanned {
			continue
		}
		avail = append(avail, p)
	}
	return avail
}

// expireCooldown ends a cooldown once now is strictly past its deadline.
func (s *Scheduler) expireCooldown(p *model.ProxyRecord, now time.Time) {
	if p.IsCoolingDown && now.After(p.CooldownUntil) {
		p.IsCoolingDown = false
		p.ConsecutiveFailures = 0
	}
}
