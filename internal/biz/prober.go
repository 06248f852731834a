package biz

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"ProxyLane/internal/conf"
	"ProxyLane/internal/model"
	"ProxyLane/pkg/proxyurl"

	"github.com/go-kratos/kratos/v2/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Prober performs one liveness check through one proxy.
// A failed check is an outcome, never an error.
type Prober interface {
	Probe(ctx context.Context, rec *model.ProxyRecord) model.ProbeOutcome
}

// ProbeConfig describes the probe target.
type ProbeConfig struct {
	TargetURL      string
	ExpectedStatus int
	Timeout        time.Duration
	// ClientCacheSize bounds the number of per-proxy HTTP clients kept alive.
	ClientCacheSize int
}

// HTTPProber fetches TargetURL through the proxy and expects ExpectedStatus.
type HTTPProber struct {
	cfg     ProbeConfig
	clients *lru.Cache[string, *http.Client]
	log     *log.Helper
}

// NewHTTPProber creates a prober with an LRU of HTTP clients keyed by proxy URL.
func NewHTTPProber(cfg ProbeConfig, logger log.Logger) (*HTTPProber, error) {
	if cfg.ExpectedStatus == 0 {
		cfg.ExpectedStatus = http.StatusOK
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ClientCacheSize <= 0 {
		cfg.ClientCacheSize = 1024
	}

	clients, err := lru.NewWithEvict(cfg.ClientCacheSize, func(_ string, c *http.Client) {
		c.CloseIdleConnections()
	})
	if err != nil {
		return nil, fmt.Errorf("create probe client cache: %w", err)
	}

	return &HTTPProber{
		cfg:     cfg,
		clients: clients,
		log:     log.NewHelper(logger),
	}, nil
}

// NewHTTPProberFromConfig builds the prober from the health_check configuration section.
func NewHTTPProberFromConfig(c *conf.HealthCheck, logger log.Logger) (*HTTPProber, error) {
	return NewHTTPProber(ProbeConfig{
		TargetURL:       c.Url,
		ExpectedStatus:  int(c.ExpectedStatus),
		Timeout:         c.Timeout.AsDuration(),
		ClientCacheSize: int(c.ClientCacheSize),
	}, logger)
}

// Probe implements Prober. The request is bounded by the configured timeout only; ending
// ctx does not abort a probe that has started.
func (p *HTTPProber) Probe(ctx context.Context, rec *model.ProxyRecord) model.ProbeOutcome {
	client, err := p.client(rec.URL())
	if err != nil {
		return model.ProbeOutcome{Err: err}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.TargetURL, nil)
	if err != nil {
		return model.ProbeOutcome{Err: fmt.Errorf("build probe request: %w", err)}
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return model.ProbeOutcome{Err: err}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	latency := float64(time.Since(start).Microseconds()) / 1000

	if resp.StatusCode != p.cfg.ExpectedStatus {
		return model.ProbeOutcome{
			LatencyMs: latency,
			Err:       fmt.Errorf("unexpected status %d, want %d", resp.StatusCode, p.cfg.ExpectedStatus),
		}
	}
	return model.ProbeOutcome{Healthy: true, LatencyMs: latency}
}

// Forget drops the cached client of a removed proxy.
func (p *HTTPProber) Forget(rec *model.ProxyRecord) {
	p.clients.Remove(rec.URL())
}

func (p *HTTPProber) client(proxyURL string) (*http.Client, error) {
	if c, ok := p.clients.Get(proxyURL); ok {
		return c, nil
	}
	c, err := proxyurl.NewHTTPClient(proxyURL, p.cfg.Timeout)
	if err != nil {
		return nil, err
	}
	p.clients.Add(proxyURL, c)
	return c, nil
}
