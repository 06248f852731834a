package server

import (
	"ProxyLane/internal/conf"
	"ProxyLane/internal/server/middleware"
	"ProxyLane/internal/service"
	pkglog "ProxyLane/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, proxyService *service.ProxyService, logger log.Logger) *http.Server {
	logHelper := pkglog.NewLogHelper(logger)

	var (
		apiToken string
		slowMs   int64 = middleware.DefaultSlowRequestMs
		opts     []http.ServerOption
	)
	if c != nil && c.Http != nil {
		if c.Http.Network != "" {
			opts = append(opts, http.Network(c.Http.Network))
		}
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout != nil {
			opts = append(opts, http.Timeout(c.Http.Timeout.AsDuration()))
		}
		if d := c.Http.SlowRequest.AsDuration(); d > 0 {
			slowMs = d.Milliseconds()
		}
		apiToken = c.Http.ApiToken
	}
	opts = append(opts, http.Middleware(
		recovery.Recovery(),
		middleware.Logging(logHelper, slowMs),
		middleware.Auth(logHelper, apiToken),
	))
	srv := http.NewServer(opts...)

	service.RegisterProxyHTTPServer(srv, proxyService)
	srv.Handle("/metrics", promhttp.Handler())

	return srv
}
