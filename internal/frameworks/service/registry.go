// Package service defines the mountable HTTP service contract and the
// registry services add themselves to from init().
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
)

// Service is an HTTP surface mounted under /<Prefix()>.
type Service interface {
	Handler() http.Handler
	Prefix() string
	Close() error
	// Unprotected lists paths, relative to the prefix, that skip the auth gate.
	Unprotected() []string
}

// NewService constructs a service from its [http.services.<name>] table.
type NewService func(conf map[string]any, log *slog.Logger) (Service, error)

// ErrNotRegistered is returned by Build for unknown names.
var ErrNotRegistered = errors.New("service not registered")

// CoreServices lists service names that are always constructed regardless of
// whether [http.services.<name>] appears in TOML, in mount order.
var CoreServices = []string{"api"}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]NewService)
)

// Register adds a constructor. Registering a name twice is an error.
func Register(name string, newFunc NewService) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return fmt.Errorf("service %q already registered", name)
	}
	registry[name] = newFunc
	return nil
}

// MustRegister is Register for init(), panicking on duplicates.
func MustRegister(name string, newFunc NewService) {
	if err := Register(name, newFunc); err != nil {
		panic(err)
	}
}

// Get returns the constructor for name, or nil.
func Get(name string) NewService {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// Names returns the registered service names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build looks up name and constructs it with a logger tagged by service name.
func Build(name string, conf map[string]any, log *slog.Logger) (Service, error) {
	newFunc := Get(name)
	if newFunc == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	if log != nil {
		log = log.With("service", name)
	}
	svc, err := newFunc(conf, log)
	if err != nil {
		return nil, fmt.Errorf("service %q: %w", name, err)
	}
	return svc, nil
}

// resetRegistry is for testing only.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]NewService)
}
