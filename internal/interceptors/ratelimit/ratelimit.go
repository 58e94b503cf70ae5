// Package ratelimit provides a rate limiting interceptor using the cache subsystem.
package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MahdiBaghbani/busyday-go/internal/components/api"
	svccfg "github.com/MahdiBaghbani/busyday-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/busyday-go/internal/interceptors"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/cache"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/deps"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/auth"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/logutil"
)

func init() {
	interceptors.Register("ratelimit", New)
}

// Config defines rate limiting parameters decoded from interceptor config.
type Config struct {
	RequestsPerWindow int64 `mapstructure:"requests_per_window"`
	WindowSeconds     int   `mapstructure:"window_seconds"`
}

// ApplyDefaults sets reasonable defaults for unconfigured fields.
func (c *Config) ApplyDefaults() {
	if c.RequestsPerWindow == 0 {
		c.RequestsPerWindow = 100
	}
	if c.WindowSeconds == 0 {
		c.WindowSeconds = 60
	}
}

// Limiter provides fixed-window rate limiting on a cache counter.
type Limiter struct {
	cache   cache.Counter
	keyFunc func(*http.Request) string
	limit   int64
	window  time.Duration
	log     *slog.Logger
}

// NewLimiter returns a Limiter keyed by CallerKey.
func NewLimiter(c cache.Counter, trusted *realip.TrustedProxies, cfg Config, log *slog.Logger) *Limiter {
	cfg.ApplyDefaults()
	return &Limiter{
		cache:   c,
		keyFunc: CallerKey(trusted),
		limit:   cfg.RequestsPerWindow,
		window:  time.Duration(cfg.WindowSeconds) * time.Second,
		log:     logutil.NoopIfNil(log),
	}
}

// New creates a new ratelimit interceptor from the given config.
// The config should be the profile config from [http.interceptors.ratelimit.profiles.<name>].
func New(conf map[string]any, log *slog.Logger) (interceptors.Middleware, error) {
	var c Config
	if err := svccfg.Decode(conf, &c); err != nil {
		return nil, err
	}

	d := deps.GetDeps()
	if d == nil || d.Cache == nil {
		return nil, fmt.Errorf("ratelimit: shared cache is not initialized")
	}

	return NewLimiter(d.Cache, d.RealIP, c, log).Wrap, nil
}

// CallerKey keys authenticated requests by caller id and everything else by
// trusted-proxy-aware client IP.
func CallerKey(trusted *realip.TrustedProxies) func(*http.Request) string {
	return func(r *http.Request) string {
		if id, ok := auth.CallerID(r.Context()); ok {
			return "user:" + id.String()
		}
		if trusted == nil {
			return "ip:" + r.RemoteAddr
		}
		return "ip:" + trusted.GetClientIPString(r)
	}
}

// Wrap is the middleware function that applies rate limiting.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.keyFunc(r)
		count, resetAt, err := l.cache.Increment(r.Context(), "ratelimit:"+key, 1, l.window)
		if err != nil {
			// Fail open.
			l.log.Warn("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if count > l.limit {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			api.WriteTooManyRequests(w, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// WithKeyFunc returns a new Limiter with a custom key function.
func (l *Limiter) WithKeyFunc(fn func(*http.Request) string) *Limiter {
	return &Limiter{
		cache:   l.cache,
		keyFunc: fn,
		limit:   l.limit,
		window:  l.window,
		log:     l.log,
	}
}
