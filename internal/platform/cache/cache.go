// Package cache provides TTL key-value storage and counters for rate limiting.
// Drivers register themselves from init() and are selected by name from
// the [cache] config section.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrExpired  = errors.New("key expired")
)

// Cache provides TTL-based key-value storage.
type Cache interface {
	// Get retrieves a value by key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. If TTL is 0, use default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists and is not expired.
	Exists(ctx context.Context, key string) (bool, error)

	Close() error
}

// Counter provides atomic increments for fixed-window rate limiting.
type Counter interface {
	// Increment adds delta to the counter and returns the new value and the
	// time the window resets. A missing key starts a new window of ttl.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error)

	// GetCount returns the current counter value. Returns 0 if not found.
	GetCount(ctx context.Context, key string) (int64, error)

	// Reset removes the counter.
	Reset(ctx context.Context, key string) error
}

// CacheWithCounter combines Cache and Counter interfaces.
type CacheWithCounter interface {
	Cache
	Counter
}

// Pinger is implemented by drivers backed by a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TTLRateLimit is the default rate limit window.
const TTLRateLimit = 1 * time.Minute

// Factory builds a driver from its [cache.drivers.<name>] table.
type Factory func(conf map[string]any, log *slog.Logger) (CacheWithCounter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// RegisterDriver registers a cache driver. Called from init().
func RegisterDriver(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// AvailableDrivers returns registered driver names, sorted.
func AvailableDrivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewFromConfig creates the named driver. drivers holds the per-driver
// tables keyed by driver name; a missing table means defaults.
func NewFromConfig(driver string, drivers map[string]map[string]any, log *slog.Logger) (CacheWithCounter, error) {
	registryMu.RLock()
	f, ok := registry[driver]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown cache driver %q (available: %v)", driver, AvailableDrivers())
	}
	c, err := f(drivers[driver], log)
	if err != nil {
		return nil, fmt.Errorf("cache driver %q: %w", driver, err)
	}
	return c, nil
}
