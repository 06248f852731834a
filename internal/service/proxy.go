package service

import (
	"context"
	nethttp "net/http"
	"strconv"

	"ProxyLane/internal/biz"
	"ProxyLane/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// Operation names reported to middleware.
const (
	OperationAddProxy        = "/proxylane.v1.ProxyService/AddProxy"
	OperationListProxies     = "/proxylane.v1.ProxyService/ListProxies"
	OperationGetProxy        = "/proxylane.v1.ProxyService/GetProxy"
	OperationRemoveProxy     = "/proxylane.v1.ProxyService/RemoveProxy"
	OperationSelectNext      = "/proxylane.v1.ProxyService/SelectNext"
	OperationReportSuccess   = "/proxylane.v1.ProxyService/ReportSuccess"
	OperationReportFailure   = "/proxylane.v1.ProxyService/ReportFailure"
	OperationResetBan        = "/proxylane.v1.ProxyService/ResetBan"
	OperationStats           = "/proxylane.v1.ProxyService/Stats"
	OperationRunHealthCheck  = "/proxylane.v1.ProxyService/RunHealthCheck"
	OperationLastHealthCheck = "/proxylane.v1.ProxyService/LastHealthCheck"
)

// Error reasons raised by the service layer itself.
const (
	ReasonBadRequest        = "BAD_REQUEST"
	ReasonHealthCheckNotRun = "HEALTH_CHECK_NOT_RUN"
)

// AddProxyRequest is the body of POST /api/proxies. When URL is set it takes precedence
// over the individual fields.
type AddProxyRequest struct {
	URL      string `json:"url,omitempty"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Country  string `json:"country,omitempty"`
	Weight   int    `json:"weight,omitempty"`
}

// ProxyReply wraps a single proxy record.
type ProxyReply struct {
	Proxy       *model.ProxyRecord `json:"proxy"`
	SuccessRate float64            `json:"success_rate"`
}

// ListProxiesReply is the reply of GET /api/proxies.
type ListProxiesReply struct {
	Proxies []*model.ProxyRecord `json:"proxies"`
	Total   int                  `json:"total"`
}

// SelectReply is the reply of GET /api/proxies/next. URL includes credentials so the
// caller can use the proxy directly.
type SelectReply struct {
	Proxy    *model.ProxyRecord `json:"proxy"`
	URL      string             `json:"url"`
	Strategy string             `json:"strategy"`
}

// ReportRequest is the optional body of the success and failure reports.
type ReportRequest struct {
	ResponseTimeMs float64 `json:"response_time_ms,omitempty"`
}

// ChangeReply reports whether an operation changed the pool.
type ChangeReply struct {
	Proxy   string `json:"proxy"`
	Changed bool   `json:"changed"`
}

// ProxyService exposes the proxy pool over HTTP.
type ProxyService struct {
	uc     *biz.ProxyUsecase
	logger *log.Helper
}

// NewProxyService creates a new ProxyService instance.
func NewProxyService(uc *biz.ProxyUsecase, logger log.Logger) *ProxyService {
	return &ProxyService{
		uc:     uc,
		logger: log.NewHelper(logger),
	}
}

// AddProxy adds a proxy to the pool.
func (s *ProxyService) AddProxy(ctx context.Context, req *AddProxyRequest) (*ProxyReply, error) {
	s.logger.Infow("AddProxy called", "address", req.Address, "port", req.Port, "protocol", req.Protocol)

	var (
		rec *model.ProxyRecord
		err error
	)
	if req.URL != "" {
		rec, err = s.uc.AddProxyURL(ctx, req.URL, req.Weight)
	} else {
		rec, err = s.uc.AddProxy(ctx, &biz.AddProxyRequest{
			Address:  req.Address,
			Port:     req.Port,
			Protocol: req.Protocol,
			Username: req.Username,
			Password: req.Password,
			Country:  req.Country,
			Weight:   req.Weight,
		})
	}
	if err != nil {
		s.logger.Warnw("failed to add proxy", "error", err)
		return nil, biz.ToAPIError(err)
	}
	return newProxyReply(rec), nil
}

// ListProxies lists the pool, optionally filtered by status and protocol.
func (s *ProxyService) ListProxies(ctx context.Context, f biz.ProxyFilter) (*ListProxiesReply, error) {
	recs := s.uc.ListProxies(ctx, f)
	return &ListProxiesReply{Proxies: recs, Total: len(recs)}, nil
}

// GetProxy returns one proxy.
func (s *ProxyService) GetProxy(ctx context.Context, id model.Identity) (*ProxyReply, error) {
	rec, err := s.uc.GetProxy(ctx, id)
	if err != nil {
		return nil, err
	}
	return newProxyReply(rec), nil
}

// RemoveProxy removes a proxy. Unknown proxies are reported as not found.
func (s *ProxyService) RemoveProxy(ctx context.Context, id model.Identity) (*ChangeReply, error) {
	s.logger.Infow("RemoveProxy called", "proxy", id.String())

	removed, err := s.uc.RemoveProxy(ctx, id)
	if err != nil {
		s.logger.Errorw("failed to remove proxy", "proxy", id.String(), "error", err)
		return nil, err
	}
	if !removed {
		return nil, biz.NewProxyNotFoundError(id)
	}
	return &ChangeReply{Proxy: id.String(), Changed: true}, nil
}

// SelectNext picks the next proxy with the named strategy.
func (s *ProxyService) SelectNext(ctx context.Context, strategy string) (*SelectReply, error) {
	rec, used, err := s.uc.SelectNext(ctx, strategy)
	if err != nil {
		return nil, biz.ToAPIError(err)
	}
	return &SelectReply{Proxy: rec, URL: rec.URL(), Strategy: used.String()}, nil
}

// ReportSuccess records a successful request through a proxy.
func (s *ProxyService) ReportSuccess(ctx context.Context, id model.Identity, req *ReportRequest) (*ChangeReply, error) {
	if req.ResponseTimeMs < 0 {
		return nil, errors.BadRequest(ReasonBadRequest, "response_time_ms must not be negative")
	}
	return &ChangeReply{Proxy: id.String(), Changed: s.uc.ReportSuccess(ctx, id, req.ResponseTimeMs)}, nil
}

// ReportFailure records a failed request through a proxy.
func (s *ProxyService) ReportFailure(ctx context.Context, id model.Identity) (*ChangeReply, error) {
	return &ChangeReply{Proxy: id.String(), Changed: s.uc.ReportFailure(ctx, id)}, nil
}

// ResetBan clears the ban of a proxy.
func (s *ProxyService) ResetBan(ctx context.Context, id model.Identity) (*ChangeReply, error) {
	s.logger.Infow("ResetBan called", "proxy", id.String())

	reset, err := s.uc.ResetBan(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ChangeReply{Proxy: id.String(), Changed: reset}, nil
}

// Stats returns the pool statistics.
func (s *ProxyService) Stats(ctx context.Context) (*biz.PoolStats, error) {
	return s.uc.Stats(ctx), nil
}

// RunHealthCheck runs one health-check batch and waits for it.
func (s *ProxyService) RunHealthCheck(ctx context.Context, concurrency int) (*model.HealthCheckResult, error) {
	s.logger.Infow("RunHealthCheck called", "concurrency", concurrency)
	return s.uc.RunHealthCheck(ctx, concurrency), nil
}

// LastHealthCheck returns the cached result of the latest batch.
func (s *ProxyService) LastHealthCheck(ctx context.Context) (*model.HealthCheckResult, error) {
	result, err := s.uc.LastHealthCheck(ctx)
	if err != nil {
		s.logger.Warnw("failed to read last health check", "error", err)
		return nil, errors.ServiceUnavailable(ReasonHealthCheckNotRun, "health check results are unavailable")
	}
	if result == nil {
		return nil, errors.NotFound(ReasonHealthCheckNotRun, "no health check has run yet")
	}
	return result, nil
}

// Healthy reports whether the pool holds at least the minimum number of available proxies.
func (s *ProxyService) Healthy() bool {
	return s.uc.Healthy()
}

func newProxyReply(rec *model.ProxyRecord) *ProxyReply {
	return &ProxyReply{Proxy: rec, SuccessRate: rec.SuccessRate()}
}

// RegisterProxyHTTPServer registers the proxy routes on srv.
func RegisterProxyHTTPServer(srv *http.Server, svc *ProxyService) {
	r := srv.Route("/")
	r.POST("/api/proxies", svc.addProxyHandler)
	r.GET("/api/proxies", svc.listProxiesHandler)
	r.GET("/api/proxies/next", svc.selectNextHandler)
	r.GET("/api/proxies/{address}/{port}", svc.getProxyHandler)
	r.DELETE("/api/proxies/{address}/{port}", svc.removeProxyHandler)
	r.POST("/api/proxies/{address}/{port}/success", svc.reportSuccessHandler)
	r.POST("/api/proxies/{address}/{port}/failure", svc.reportFailureHandler)
	r.POST("/api/proxies/{address}/{port}/reset", svc.resetBanHandler)
	r.GET("/api/stats", svc.statsHandler)
	r.POST("/api/health-check", svc.runHealthCheckHandler)
	r.GET("/api/health-check/last", svc.lastHealthCheckHandler)
}

func identityFromVars(ctx http.Context) (model.Identity, error) {
	vars := ctx.Vars()
	port, err := strconv.Atoi(vars.Get("port"))
	if err != nil {
		return model.Identity{}, errors.BadRequest(ReasonBadRequest, "port must be a number")
	}
	return model.Identity{Address: vars.Get("address"), Port: port}, nil
}

// invoke runs fn through the server middleware chain under operation.
func invoke(ctx http.Context, operation string, req interface{}, fn func(context.Context, interface{}) (interface{}, error)) (interface{}, error) {
	http.SetOperation(ctx, operation)
	h := ctx.Middleware(fn)
	return h(ctx, req)
}

func (s *ProxyService) addProxyHandler(ctx http.Context) error {
	var in AddProxyRequest
	if err := ctx.Bind(&in); err != nil {
		return errors.BadRequest(ReasonBadRequest, err.Error())
	}
	out, err := invoke(ctx, OperationAddProxy, &in, func(c context.Context, req interface{}) (interface{}, error) {
		return s.AddProxy(c, req.(*AddProxyRequest))
	})
	if err != nil {
		return err
	}
	return ctx.Result(nethttp.StatusCreated, out)
}

func (s *ProxyService) listProxiesHandler(ctx http.Context) error {
	q := ctx.Query()
	f := biz.ProxyFilter{
		Status:   model.HealthStatus(q.Get("status")),
		Protocol: model.Protocol(q.Get("protocol")),
	}
	out, err := invoke(ctx, OperationListProxies, f, func(c context.Context, req interface{}) (interface{}, error) {
		return s.ListProxies(c, req.(biz.ProxyFilter))
	})
	if err != nil {
		return err
	}
	return ctx.Result(nethttp.StatusOK, out)
}

func (s *ProxyService) getProxyHandler(ctx http.Context) error {
	id, err := identityFromVars(ctx)
	if err != nil {
		return err
	}
	out, err := invoke(ctx, OperationGetProxy, id, func(c context.Context, req interface{}) (interface{}, error) {
		return s.GetProxy(c, req.(model.Identity))
	})
	if err != nil {
		return err
	}
	return ctx.Result(nethttp.StatusOK, out)
}

func (s *ProxyService) removeProxyHandler(ctx http.Context) error {
	id, err := identityFromVars(ctx)
	if err != nil {
		return err
	}
	out, err := invoke(ctx, OperationRemoveProxy, id, func(c context.Context, req interface{}) (interface{}, error) {
		return s.RemoveProxy(c, req.(model.Identity))
	})
	if err != nil {
		return err
	}
	return ctx.Result(nethttp.StatusOK, out)
}

func (s *ProxyService) selectNextHandler(ctx http.Context) error {
	strategy := ctx.Query().Get("strategy")
	out, err := invoke(ctx, OperationSelectNext, strategy, func(c context.Context, req interface{}) (interface{}, error) {
		return s.SelectNext(c, req.(string))
	})
	if err != nil {
		return err
	}
	return ctx.Result(nethttp.StatusOK, out)
}

func (s *ProxyService) reportSuccessHandler(ctx http.Context) error {
	id, err := identityFromVars(ctx)
	if err != nil {
		return err
	}
	var in ReportRequest
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&in); err != nil {
			return errors.BadRequest(ReasonBadRequest, err.Error())
		}
	}
	out, err := invoke(ctx, OperationReportSuccess, &in, func(c context.Context, req interface{}) (interface{}, error) {
		return s.ReportSuccess(c, id, req.(*ReportRequest))
	})
	if err != nil {
		return err
	}
	return ctx.Result(nethttp.StatusOK, out)
}

func (s *ProxyService) reportFailureHandler(ctx http.Context) error {
	id, err := identityFromVars(ctx)
	if err != nil {
		return err
	}
	out, err := invoke(ctx, OperationReportFailure, id, func(c context.Context, req interface{}) (interface{}, error) {
		return s.ReportFailure(c, req.(model.Identity))
	})
	if err != nil {
		return err
	}
	return ctx.Result(nethttp.StatusOK, out)
}

func (s *ProxyService) resetBanHandler(ctx http.Context) error {
	id, err := identityFromVars(ctx)
	if err != nil {
		return err
	}
	out, err := invoke(ctx, OperationResetBan, id, func(c context.Context, req interface{}) (interface{}, error) {
		return s.ResetBan(c, req.(model.Identity))
	})
	if err != nil {
		return err
	}
	return ctx.Result(nethttp.StatusOK, out)
}

func (s *ProxyService) statsHandler(ctx http.Context) error {
	out, err := invoke(ctx, OperationStats, nil, func(c context.Context, _ interface{}) (interface{}, error) {
		return s.Stats(c)
	})
	if err != nil {
		return err
	}
	return ctx.Result(nethttp.StatusOK, out)
}

func (s *ProxyService) runHealthCheckHandler(ctx http.Context) error {
	concurrency := 0
	if raw := ctx.Query().Get("concurrency"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return errors.BadRequest(ReasonBadRequest, "concurrency must be a non-negative number")
		}
		concurrency = n
	}
	out, err := invoke(ctx, OperationRunHealthCheck, concurrency, func(c context.Context, req interface{}) (interface{}, error) {
		return s.RunHealthCheck(c, req.(int))
	})
	if err != nil {
		return err
	}
	return ctx.Result(nethttp.StatusOK, out)
}

func (s *ProxyService) lastHealthCheckHandler(ctx http.Context) error {
	out, err := invoke(ctx, OperationLastHealthCheck, nil, func(c context.Context, _ interface{}) (interface{}, error) {
		return s.LastHealthCheck(c)
	})
	if err != nil {
		return err
	}
	return ctx.Result(nethttp.StatusOK, out)
}
