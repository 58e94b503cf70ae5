// Package interceptors holds named, profile-configured HTTP middleware that
// services attach to selected routes. Interceptors register from init().
package interceptors

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
)

// Middleware is an HTTP middleware function.
type Middleware func(http.Handler) http.Handler

// NewInterceptor builds a middleware from one profile table.
type NewInterceptor func(conf map[string]any, log *slog.Logger) (Middleware, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]NewInterceptor)
)

// Register registers an interceptor constructor by name. Called from init().
func Register(name string, fn NewInterceptor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Get returns the interceptor constructor for the given name.
func Get(name string) (NewInterceptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Names returns the registered interceptor names, sorted.
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

// GetProfileConfig returns the table at
// [http.interceptors.<interceptor>.profiles.<profile>].
func GetProfileConfig(interceptorsCfg map[string]map[string]any, interceptor, profile string) (map[string]any, error) {
	interceptorCfg, ok := interceptorsCfg[interceptor]
	if !ok {
		return nil, fmt.Errorf("no %s interceptor configured, cannot find profile %q", interceptor, profile)
	}
	profiles, ok := interceptorCfg["profiles"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s has no profiles table, cannot find profile %q", interceptor, profile)
	}
	profileCfg, ok := profiles[profile].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s profile %q not found", interceptor, profile)
	}
	return profileCfg, nil
}

// Build resolves profile and constructs the named interceptor from it.
func Build(interceptorsCfg map[string]map[string]any, interceptor, profile string, log *slog.Logger) (Middleware, error) {
	conf, err := GetProfileConfig(interceptorsCfg, interceptor, profile)
	if err != nil {
		return nil, err
	}
	newFunc, ok := Get(interceptor)
	if !ok {
		return nil, fmt.Errorf("interceptor %q not registered", interceptor)
	}
	mw, err := newFunc(conf, log)
	if err != nil {
		return nil, fmt.Errorf("%s profile %q: %w", interceptor, profile, err)
	}
	return mw, nil
}
