package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/busyday-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/realip"
)

// AccessLogMiddleware writes one "request" line per request with status,
// bytes and duration_ms on top of the context logger's fields. 5xx responses
// are logged at error level. user_id is added when the auth gate recorded one.
//
// log and trustedProxies are used only when RequestLoggerMiddleware did not run.
func AccessLogMiddleware(log *slog.Logger, trustedProxies *realip.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger, ok := appctx.LoggerFromContext(r.Context())
				if !ok {
					logger = log.With(requestFields(r, trustedProxies)...)
				}

				// Base fields are already on logger; adding them again duplicates keys.
				attrs := []any{
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				}
				if info, ok := r.Context().Value(accessInfoKey{}).(*accessInfo); ok && info.userID != "" {
					attrs = append(attrs, "user_id", info.userID)
				}

				level := slog.LevelInfo
				if ww.Status() >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				logger.Log(r.Context(), level, "request", attrs...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
