// Package middleware provides always-on transport middleware for HTTP servers.
package middleware

import (
	"log/slog"
	"net"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/staybook/frontdesk/internal/platform/appctx"
)

// RequestLoggerMiddleware attaches a request-scoped logger to the request context.
//
// It must run after chi's RequestID so that GetReqID returns a value.
func RequestLoggerMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := base.With(requestFields(r)...)
			ctx := appctx.WithLogger(r.Context(), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestFields are the base fields shared by the request logger and the
// access log fallback. Path only, no query string.
func requestFields(r *http.Request) []any {
	return []any{
		"request_id", chimw.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"client_ip", clientIP(r),
	}
}

// clientIP is the peer address. The console listens on a private address and
// is not deployed behind proxies, so forwarding headers are ignored.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}
