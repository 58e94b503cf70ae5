// Package api provides the /api/* endpoints.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/busyday-go/internal/components/api"
	"github.com/MahdiBaghbani/busyday-go/internal/components/api/calendar"
	"github.com/MahdiBaghbani/busyday-go/internal/components/api/invitations"
	"github.com/MahdiBaghbani/busyday-go/internal/frameworks/service"
	svccfg "github.com/MahdiBaghbani/busyday-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/busyday-go/internal/frameworks/service/httpwrap"
	"github.com/MahdiBaghbani/busyday-go/internal/interceptors"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/deps"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/auth"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/logutil"
)

func init() {
	service.MustRegister("api", New)
}

// Config holds api service configuration.
type Config struct {
	// Ratelimit holds rate limiting configuration for this service.
	Ratelimit RatelimitConfig `mapstructure:"ratelimit"`
}

// RatelimitConfig holds the per-service rate limiting opt-in.
type RatelimitConfig struct {
	// Profile is the name of the ratelimit profile to use from
	// [http.interceptors.ratelimit.profiles.<name>]. Applied to the
	// invitation mutations only.
	Profile string `mapstructure:"profile"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {}

// Service is the API service.
type Service struct {
	router chi.Router
	conf   *Config
	log    *slog.Logger
}

// New creates a new API service.
func New(m map[string]any, log *slog.Logger) (service.Service, error) {
	log = logutil.NoopIfNil(log)

	var c Config
	unused, err := svccfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "service", "api", "unused_keys", unused)
	}

	d := deps.GetDeps()
	if d == nil {
		return nil, errors.New("shared deps not initialized")
	}
	if d.Engine == nil || d.Aggregator == nil {
		return nil, errors.New("api: scheduling engine not initialized")
	}

	var mutations func(http.Handler) http.Handler
	if c.Ratelimit.Profile != "" {
		var interceptorsCfg map[string]map[string]any
		if d.Config != nil {
			interceptorsCfg = d.Config.HTTP.Interceptors
		}
		mutations, err = interceptors.Build(interceptorsCfg, "ratelimit", c.Ratelimit.Profile, log)
		if err != nil {
			return nil, fmt.Errorf("api: %w", err)
		}
	}

	invitationsHandler := invitations.NewHandler(d.Engine, auth.CurrentUser, log)
	calendarHandler := calendar.NewHandler(d.Aggregator, auth.CurrentUser, log)

	r := chi.NewRouter()

	// Health endpoint (public)
	r.Get("/healthz", api.NewHealthHandler(d.Health))

	// Bearer-gated
	invitationsHandler.Routes(r, mutations)
	calendarHandler.Routes(r)

	return &Service{router: r, conf: &c, log: log}, nil
}

// Handler returns the service's HTTP handler with RawPath clearing.
func (s *Service) Handler() http.Handler {
	return httpwrap.ClearRawPath(s.router)
}

// Prefix returns the URL prefix for this service.
func (s *Service) Prefix() string {
	return "api"
}

// Unprotected returns paths that don't require a bearer token.
func (s *Service) Unprotected() []string {
	return []string{"/healthz"}
}

// Close releases any resources held by the service.
func (s *Service) Close() error {
	return nil
}
