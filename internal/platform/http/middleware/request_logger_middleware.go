// Package middleware provides always-on transport middleware for HTTP servers.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/busyday-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/realip"
)

type accessInfoKey struct{}

// accessInfo is filled in by inner middleware and read by the access log
// after the handler returns.
type accessInfo struct {
	userID string
}

// SetUserID records the authenticated caller for the access log line.
// It is a no-op when the request did not pass through RequestLoggerMiddleware.
func SetUserID(ctx context.Context, userID string) {
	if info, ok := ctx.Value(accessInfoKey{}).(*accessInfo); ok {
		info.userID = userID
	}
}

// RequestLoggerMiddleware attaches a request-scoped logger carrying
// request_id, method, path and client_ip to the request context.
//
// Must run after chi's RequestID so the id is populated.
func RequestLoggerMiddleware(base *slog.Logger, trustedProxies *realip.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := base.With(requestFields(r, trustedProxies)...)

			ctx := appctx.WithLogger(r.Context(), reqLogger)
			ctx = context.WithValue(ctx, accessInfoKey{}, &accessInfo{})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestFields(r *http.Request, trustedProxies *realip.TrustedProxies) []any {
	clientIP := "unknown"
	if trustedProxies != nil {
		clientIP = trustedProxies.GetClientIPString(r)
	}
	return []any{
		"request_id", chimw.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path, // path only, no query string
		"client_ip", clientIP,
	}
}
