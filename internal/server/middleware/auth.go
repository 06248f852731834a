// Package middleware provides the HTTP middleware of the proxy API.
package middleware

import (
	"context"
	"crypto/subtle"
	"strings"

	pkglog "ProxyLane/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// ReasonUnauthorized is the error reason of rejected API tokens.
const ReasonUnauthorized = "UNAUTHORIZED"

// Auth returns a middleware that requires the API token on every request. The token is
// read from "Authorization: Bearer <token>" or X-API-Key. An empty token disables the
// check.
func Auth(logger *pkglog.LogHelper, token string) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		if token == "" {
			return handler
		}
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			var presented string
			if tr, ok := transport.FromServerContext(ctx); ok {
				if ht, ok := tr.(http.Transporter); ok {
					presented = tokenFromRequest(ht.Request())
				}
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				logger.Warnw("msg", "rejected API request",
					"request_id", pkglog.GetRequestID(ctx),
					"api_key_masked", maskAPIKey(presented),
				)
				return nil, errors.Unauthorized(ReasonUnauthorized, "missing or invalid API token")
			}
			return handler(ctx, req)
		}
	}
}

func tokenFromRequest(req *http.Request) string {
	if authHeader := req.Header.Get("Authorization"); authHeader != "" {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return req.Header.Get("X-API-Key")
}

// maskAPIKey keeps the first 8 characters, e.g. "sk-1234567890abcdef" -> "sk-12345***".
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:8] + "***"
}
