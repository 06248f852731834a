package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"ProxyLane/internal/conf"
	"ProxyLane/internal/model"
	pkgerrors "ProxyLane/pkg/errors"
	plog "ProxyLane/pkg/log"
	"ProxyLane/pkg/metrics"
	"ProxyLane/pkg/proxyurl"

	"github.com/go-kratos/kratos/v2/log"
)

// AddProxyRequest describes a proxy to add to the pool.
type AddProxyRequest struct {
	Address  string
	Port     int
	Protocol string
	Username string
	Password string
	Country  string
	Weight   int
}

// ProxyFilter narrows ListProxies. Empty fields match everything.
type ProxyFilter struct {
	Status   model.HealthStatus
	Protocol model.Protocol
}

// PoolStats is the stats view of the pool.
type PoolStats struct {
	model.PoolCounts
	ByProtocol      map[string]int       `json:"by_protocol"`
	MinPoolSize     int                  `json:"min_pool_size"`
	BelowMinPool    bool                 `json:"below_min_pool"`
	SharedCooldowns int                  `json:"shared_cooldowns"`
	Proxies         []*model.ProxyRecord `json:"proxies"`
}

// ProxyUsecase is the entry point for callers: it validates input, drives the scheduler
// and the health-check engine, and writes changes through to the store.
type ProxyUsecase struct {
	sched           *Scheduler
	checker         *HealthChecker
	repo            ProxyRepo
	cooldowns       CooldownMarker
	results         HealthResultCache
	audit           AuditLogger
	protocols       []string
	defaultStrategy Strategy
	minPoolSize     int
	seedFile        string
	logger          *plog.LogHelper

	// storeMu orders removals against snapshot writes
	storeMu sync.Mutex
}

// NewProxyUsecase creates the proxy usecase.
func NewProxyUsecase(c *conf.Proxy, sched *Scheduler, checker *HealthChecker, repo ProxyRepo,
	cooldowns CooldownMarker, results HealthResultCache, audit AuditLogger, logger log.Logger) *ProxyUsecase {
	uc := &ProxyUsecase{
		sched:     sched,
		checker:   checker,
		repo:      repo,
		cooldowns: cooldowns,
		results:   results,
		audit:     audit,
		protocols: []string{string(model.ProtocolHTTP), string(model.ProtocolHTTPS), string(model.ProtocolSOCKS5)},
		logger:    plog.NewLogHelper(logger),
	}
	if c != nil {
		if len(c.Protocols) > 0 {
			uc.protocols = c.Protocols
		}
		uc.defaultStrategy, _ = ParseStrategy(c.DefaultStrategy)
		uc.minPoolSize = int(c.MinPoolSize)
		uc.seedFile = c.SeedFile
	}
	checker.OnBan(func(ctx context.Context, ev *model.BanEvent) {
		uc.audit.LogProxyBanned(ctx, ev)
	})
	return uc
}

// DefaultStrategy returns the strategy used when a caller names none.
func (uc *ProxyUsecase) DefaultStrategy() Strategy {
	return uc.defaultStrategy
}

// Restore loads persisted records into the scheduler and then adds the proxies listed in
// the seed file, if any. Seed entries already in the pool are skipped.
func (uc *ProxyUsecase) Restore(ctx context.Context) error {
	records, err := uc.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load proxies: %w", err)
	}
	loaded := uc.sched.Load(records)
	uc.logger.Startup("proxy pool restored", "loaded", loaded, "stored", len(records))

	if uc.seedFile != "" {
		if err := uc.seed(ctx); err != nil {
			return err
		}
	}

	uc.publishPool()
	return nil
}

func (uc *ProxyUsecase) seed(ctx context.Context) error {
	parsed, bad, err := proxyurl.LoadFile(uc.seedFile)
	if err != nil {
		return err
	}
	for _, lineErr := range bad {
		uc.logger.Warnw("msg", "skipping malformed seed entry", "file", uc.seedFile, "error", lineErr.Error())
	}

	added := 0
	for _, p := range parsed {
		_, err := uc.AddProxy(ctx, &AddProxyRequest{
			Address:  p.Address,
			Port:     p.Port,
			Protocol: p.Protocol,
			Username: p.Username,
			Password: p.Password,
		})
		var dup *DuplicateProxyError
		switch {
		case err == nil:
			added++
		case stderrors.As(err, &dup):
		default:
			uc.logger.Warnw("msg", "failed to add seed proxy", "proxy", p.HostPort(), "error", err)
		}
	}
	uc.logger.Startup("seed file applied", "file", uc.seedFile, "added", added, "entries", len(parsed))
	return nil
}

func (uc *ProxyUsecase) validate(req *AddProxyRequest) error {
	protocol := strings.ToLower(req.Protocol)
	supported := false
	for _, p := range uc.protocols {
		if p == protocol {
			supported = true
			break
		}
	}
	if !supported {
		return &UnsupportedProtocolError{Protocol: req.Protocol, Supported: uc.protocols}
	}
	if !proxyurl.ValidatePort(req.Port) {
		return &InvalidProxyError{Field: "port", Reason: fmt.Sprintf("%d is outside 1-65535", req.Port)}
	}
	if !proxyurl.ValidateAddress(req.Address) {
		return &InvalidProxyError{Field: "address", Reason: fmt.Sprintf("%q is not an IPv4 address or hostname", req.Address)}
	}
	if (req.Username == "") != (req.Password == "") {
		return &InvalidProxyError{Field: "credentials", Reason: "username and password must be given together"}
	}
	return nil
}

// AddProxy validates req, adds it to the pool and inserts it into the store. When the
// insert fails the pool is left as it was.
func (uc *ProxyUsecase) AddProxy(ctx context.Context, req *AddProxyRequest) (*model.ProxyRecord, error) {
	if err := uc.validate(req); err != nil {
		return nil, err
	}

	rec := &model.ProxyRecord{
		Address:  req.Address,
		Port:     req.Port,
		Protocol: model.Protocol(strings.ToLower(req.Protocol)),
		Username: req.Username,
		Password: req.Password,
		Country:  req.Country,
	}
	if err := uc.sched.AddProxy(rec, req.Weight); err != nil {
		return nil, err
	}

	stored, _ := uc.sched.Get(rec.ID())
	if err := uc.repo.Create(ctx, stored); err != nil {
		uc.sched.RemoveProxy(rec.ID())
		if pkgerrors.IsDuplicateKeyError(err) {
			return nil, &DuplicateProxyError{ID: rec.ID()}
		}
		return nil, fmt.Errorf("persist proxy %s: %w", rec.ID(), err)
	}

	uc.audit.LogProxyAdded(ctx, stored)
	uc.publishPool()
	return stored, nil
}

// AddProxyURL parses a proxy URL and adds it.
func (uc *ProxyUsecase) AddProxyURL(ctx context.Context, raw string, weight int) (*model.ProxyRecord, error) {
	p, err := proxyurl.Parse(raw)
	if err != nil {
		return nil, &InvalidProxyError{Field: "url", Reason: err.Error()}
	}
	return uc.AddProxy(ctx, &AddProxyRequest{
		Address:  p.Address,
		Port:     p.Port,
		Protocol: p.Protocol,
		Username: p.Username,
		Password: p.Password,
		Weight:   weight,
	})
}

// RemoveProxy removes id from the store and then from the pool. It reports false when id
// is unknown. If the store delete fails the pool is left untouched.
func (uc *ProxyUsecase) RemoveProxy(ctx context.Context, id model.Identity) (bool, error) {
	uc.storeMu.Lock()
	defer uc.storeMu.Unlock()

	rec, ok := uc.sched.Get(id)
	if !ok {
		return false, nil
	}

	if _, err := uc.repo.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("delete proxy %s: %w", id, err)
	}
	if !uc.sched.RemoveProxy(id) {
		return false, nil
	}

	if err := uc.cooldowns.ClearCooldown(ctx, id); err != nil {
		uc.logger.Warnw("msg", "failed to clear cooldown marker (degraded mode)", "proxy", id.String(), "error", err)
	}
	if f, ok := uc.checker.prober.(interface{ Forget(*model.ProxyRecord) }); ok {
		f.Forget(rec)
	}
	uc.audit.LogProxyRemoved(ctx, id)

	uc.publishPool()
	return true, nil
}

// SelectNext picks the next proxy. An empty name uses the configured default strategy and
// an unknown name falls back to round robin.
func (uc *ProxyUsecase) SelectNext(_ context.Context, strategyName string) (*model.ProxyRecord, Strategy, error) {
	strategy := uc.defaultStrategy
	if strategyName != "" {
		var known bool
		strategy, known = ParseStrategy(strategyName)
		if !known {
			uc.logger.Debugw("msg", "unknown strategy, using round robin", "strategy", strategyName)
		}
	}

	rec, err := uc.sched.SelectNext(strategy)
	if err != nil {
		metrics.SelectionsTotal.WithLabelValues(strategy.String(), "none").Inc()
		return nil, strategy, err
	}
	metrics.SelectionsTotal.WithLabelValues(strategy.String(), "ok").Inc()
	return rec, strategy, nil
}

// ReportSuccess records a successful request. It reports false for unknown proxies.
func (uc *ProxyUsecase) ReportSuccess(_ context.Context, id model.Identity, responseTimeMs float64) bool {
	if !uc.sched.ReportSuccess(id, responseTimeMs) {
		return false
	}
	metrics.ReportsTotal.WithLabelValues("success").Inc()
	metrics.ResponseTime.Observe(responseTimeMs / 1000)
	return true
}

// ReportFailure records a failed request and publishes a cooldown marker when the proxy
// enters cooldown. It reports false for unknown proxies.
func (uc *ProxyUsecase) ReportFailure(ctx context.Context, id model.Identity) bool {
	ev, ok := uc.sched.ReportFailure(id)
	if !ok {
		return false
	}
	metrics.ReportsTotal.WithLabelValues("failure").Inc()

	if ev != nil {
		metrics.CooldownsTotal.Inc()
		uc.audit.LogCooldownStarted(ctx, ev)
		if err := uc.cooldowns.MarkCooldown(ctx, ev); err != nil {
			uc.logger.Warnw("msg", "failed to publish cooldown marker (degraded mode)", "proxy", id.String(), "error", err)
		}
		uc.publishPool()
	}
	return true
}

// ResetBan clears a ban so the proxy is probed and selectable again.
func (uc *ProxyUsecase) ResetBan(ctx context.Context, id model.Identity) (bool, error) {
	if !uc.sched.ResetBan(id) {
		if _, ok := uc.sched.Get(id); !ok {
			return false, NewProxyNotFoundError(id)
		}
		return false, nil
	}

	uc.storeMu.Lock()
	if rec, ok := uc.sched.Get(id); ok {
		if err := uc.repo.Save(ctx, rec); err != nil {
			uc.logger.Warnw("msg", "failed to persist ban reset", "proxy", id.String(), "error", err)
		}
	}
	uc.storeMu.Unlock()
	uc.audit.LogBanReset(ctx, id)
	uc.publishPool()
	return true, nil
}

// GetProxy returns the live record of id.
func (uc *ProxyUsecase) GetProxy(_ context.Context, id model.Identity) (*model.ProxyRecord, error) {
	rec, ok := uc.sched.Get(id)
	if !ok {
		return nil, NewProxyNotFoundError(id)
	}
	return rec, nil
}

// ListProxies returns the records matching f in insertion order.
func (uc *ProxyUsecase) ListProxies(_ context.Context, f ProxyFilter) []*model.ProxyRecord {
	all := uc.sched.Stats()
	out := make([]*model.ProxyRecord, 0, len(all))
	for _, rec := range all {
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.Protocol != "" && rec.Protocol != f.Protocol {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Stats returns pool counts and every record.
func (uc *ProxyUsecase) Stats(ctx context.Context) *PoolStats {
	counts := uc.sched.Counts()
	proxies := uc.sched.Stats()

	stats := &PoolStats{
		PoolCounts:   counts,
		ByProtocol:   make(map[string]int),
		MinPoolSize:  uc.minPoolSize,
		BelowMinPool: counts.Available < uc.minPoolSize,
		Proxies:      proxies,
	}
	for _, rec := range proxies {
		stats.ByProtocol[string(rec.Protocol)]++
	}

	if ids, err := uc.cooldowns.CoolingDown(ctx); err != nil {
		uc.logger.Warnw("msg", "failed to read cooldown markers (degraded mode)", "error", err)
	} else {
		stats.SharedCooldowns = len(ids)
	}
	return stats
}

// Healthy reports whether enough proxies are available to serve traffic.
func (uc *ProxyUsecase) Healthy() bool {
	return uc.sched.Counts().Available >= uc.minPoolSize
}

// RunHealthCheck probes every proxy that is not banned, caches the result and flushes the
// updated records to the store.
func (uc *ProxyUsecase) RunHealthCheck(ctx context.Context, concurrency int) *model.HealthCheckResult {
	all := uc.sched.Stats()
	targets := make([]*model.ProxyRecord, 0, len(all))
	for _, rec := range all {
		if rec.Status != model.StatusBanned {
			targets = append(targets, rec)
		}
	}

	result := uc.checker.CheckBatch(ctx, targets, concurrency)

	if err := uc.results.SaveLastResult(ctx, &result); err != nil {
		uc.logger.Warnw("msg", "failed to cache health check result (degraded mode)", "error", err)
	}
	if err := uc.FlushSnapshot(ctx); err != nil {
		uc.logger.Errorw("msg", "failed to persist health check results", "error", err)
	}
	uc.publishPool()
	return &result
}

// LastHealthCheck returns the cached result of the most recent batch, or nil.
func (uc *ProxyUsecase) LastHealthCheck(ctx context.Context) (*model.HealthCheckResult, error) {
	return uc.results.LastResult(ctx)
}

// FlushSnapshot writes the live counters of every proxy to the store. Removals wait for
// a running flush, so a flushed row is never one that was already deleted.
func (uc *ProxyUsecase) FlushSnapshot(ctx context.Context) error {
	uc.storeMu.Lock()
	defer uc.storeMu.Unlock()

	recs := uc.sched.Stats()
	if len(recs) == 0 {
		return nil
	}
	if err := uc.repo.SaveBatch(ctx, recs); err != nil {
		return fmt.Errorf("flush %d proxies: %w", len(recs), err)
	}
	uc.logger.Database("snapshot flushed", "proxies", len(recs))
	return nil
}

func (uc *ProxyUsecase) publishPool() {
	c := uc.sched.Counts()
	metrics.SetPool(c.Total, c.Available, c.CoolingDown, c.Banned, c.Active)
}
