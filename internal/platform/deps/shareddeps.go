// Package deps provides shared dependencies for all services.
package deps

import (
	"context"
	"sync"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/cache"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/config"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/auth"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/realip"
)

var (
	sharedDeps     *Deps
	sharedDepsOnce sync.Once
)

// Pinger reports backend connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds shared dependencies for all services. Services in the monolith
// share one store and one engine.
type Deps struct {
	// Store is the scheduling persistence driver.
	Store scheduling.Store

	// Health is pinged by /api/healthz. Usually the store driver.
	Health Pinger

	Engine     *scheduling.Engine
	Aggregator *scheduling.Aggregator

	// Verifier validates bearer tokens. Used by the server auth gate.
	Verifier *auth.Verifier

	// Config (for handlers that need config values)
	Config *config.Config

	// Cache provides cache access for interceptors (rate limiting)
	Cache cache.CacheWithCounter

	// RealIP provides trusted-proxy-aware client IP extraction.
	// This is the single source of truth for client identity in logging and rate limiting.
	RealIP *realip.TrustedProxies
}

// SetDeps sets the shared dependencies. Must be called once at startup
// before any services are constructed.
func SetDeps(d *Deps) {
	sharedDepsOnce.Do(func() {
		sharedDeps = d
	})
}

// GetDeps returns the shared dependencies.
// Returns nil if SetDeps has not been called.
func GetDeps() *Deps {
	return sharedDeps
}

// ResetDeps is for testing only. Resets the singleton.
func ResetDeps() {
	sharedDeps = nil
	sharedDepsOnce = sync.Once{}
}
