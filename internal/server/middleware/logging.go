package middleware

import (
	"context"
	"strings"
	"time"

	pkglog "ProxyLane/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// DefaultSlowRequestMs is the duration above which a request is logged as slow.
const DefaultSlowRequestMs = 2000

// Logging returns a middleware that logs every API request with its status and duration.
// A request id is taken from X-Request-ID or generated, and stored in the context.
//
// Example output:
//
//	🟢 POST /api/proxies - 201 (3ms) | RequestID: mgrn0zfqda
//	🐌 [mgrn0zfqda] slow request POST /api/health-check 13438ms (threshold 2000ms)
func Logging(logger *pkglog.LogHelper, slowMs int64) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			startTime := time.Now()

			var (
				method    string
				path      string
				operation string
				ip        string
				userAgent string
				requestID string
			)

			if tr, ok := transport.FromServerContext(ctx); ok {
				operation = tr.Operation()
				method = tr.Kind().String()
				path = operation

				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					method = httpReq.Method
					path = httpReq.URL.Path
					if httpReq.URL.RawQuery != "" {
						path = path + "?" + httpReq.URL.RawQuery
					}
					ip = extractClientIP(httpReq)
					userAgent = httpReq.Header.Get("User-Agent")
					requestID = httpReq.Header.Get("X-Request-ID")
				}
				if requestID == "" {
					requestID = pkglog.GenerateRequestID()
				}
				tr.ReplyHeader().Set("X-Request-ID", requestID)
			}

			ctx = pkglog.WithRequestContext(ctx, requestID, operation, ip)

			reply, err := handler(ctx, req)

			logger.RequestWithContext(ctx, method, path, extractHTTPStatus(err), time.Since(startTime).Milliseconds(), slowMs,
				"user_agent", userAgent,
			)
			return reply, err
		}
	}
}

// extractClientIP prefers X-Real-IP, then the first X-Forwarded-For hop, then RemoteAddr.
func extractClientIP(req *http.Request) string {
	if ip := req.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	return req.RemoteAddr
}

// extractHTTPStatus maps err to the status code the error encoder will write.
func extractHTTPStatus(err error) int {
	if err == nil {
		return 200
	}
	return int(errors.FromError(err).Code)
}
