package server

import (
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/busyday-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/deps"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/auth"
	httpmw "github.com/MahdiBaghbani/busyday-go/internal/platform/http/middleware"
)

// IsAuthRequired reports whether path needs a bearer token. Every path does
// unless a mounted service lists it (relative to its prefix) in Unprotected.
func IsAuthRequired(path, basePath string, mounted []service.Service) bool {
	for _, svc := range mounted {
		if svc == nil {
			continue
		}
		root := servicePath(basePath, svc.Prefix())
		for _, open := range svc.Unprotected() {
			if pathMatchesPrefix(path, root+open) {
				return false
			}
		}
	}
	return true
}

func servicePath(basePath, prefix string) string {
	if prefix == "" {
		return basePath
	}
	return basePath + "/" + prefix
}

// pathMatchesPrefix reports whether path is prefix or lies below it.
func pathMatchesPrefix(path, prefix string) bool {
	rest, ok := strings.CutPrefix(path, prefix)
	return ok && (rest == "" || rest[0] == '/')
}

// setupRoutes builds the router. Middleware order is fixed:
// RequestID, request logger, access log, recoverer, auth gate.
func (s *Server) setupRoutes() chi.Router {
	d := deps.GetDeps()
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(httpmw.RequestLoggerMiddleware(s.logger, d.RealIP))
	r.Use(httpmw.AccessLogMiddleware(s.logger, d.RealIP))
	r.Use(chimw.Recoverer)
	r.Use(auth.NewAuthGate(auth.AuthGateConfig{
		// Read at request time; services are mounted below.
		RequireAuth: func(path string) bool {
			return IsAuthRequired(path, s.cfg.ExternalBasePath, s.mountedServices)
		},
		Log:      s.logger,
		Verifier: d.Verifier,
	}))

	mount := func(r chi.Router) {
		for _, name := range s.mountOrder() {
			svc := s.services[name]
			if svc == nil {
				continue
			}
			r.Mount("/"+svc.Prefix(), svc.Handler())
			s.mountedServices = append(s.mountedServices, svc)
		}
	}
	if s.cfg.ExternalBasePath != "" {
		r.Route(s.cfg.ExternalBasePath, mount)
	} else {
		mount(r)
	}
	return r
}
