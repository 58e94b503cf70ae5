// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MahdiBaghbani/busyday-go/internal/store"
)

// Config holds the server configuration.
type Config struct {
	// Mode is the operating mode: strict or dev.
	Mode string `toml:"mode"`

	// ExternalBasePath is the optional path prefix for all endpoints.
	// Example: "/busyday" or empty string
	ExternalBasePath string `toml:"external_base_path"`

	// ListenAddr is the address to listen on.
	// Example: ":8080"
	ListenAddr string `toml:"listen_addr"`

	Server ServerConfig `toml:"server"`

	TLS TLSConfig `toml:"tls"`

	// Store selects and configures the persistence driver.
	Store store.DriverConfig `toml:"store"`

	Cache CacheConfig `toml:"cache"`

	Auth AuthConfig `toml:"auth"`

	Telemetry TelemetryConfig `toml:"telemetry"`

	Logging LoggingConfig `toml:"logging"`

	// HTTP holds per-service and per-interceptor tables.
	HTTP HTTPConfig `toml:"http"`
}

// HTTPConfig holds per-service HTTP configuration.
// Services are configured under [http.services.<svcname>].
// Interceptors are configured under [http.interceptors.<name>].
type HTTPConfig struct {
	// Services maps service names to their raw config maps.
	// Each service decodes its own config via cfg.Decode() with Setter interface.
	Services map[string]map[string]any `toml:"services"`

	// Interceptors maps interceptor names to their raw config maps.
	// Ratelimit profiles live at [http.interceptors.ratelimit.profiles.<name>].
	// Per-service opt-in is [http.services.<svc>.ratelimit] with profile = "<name>".
	Interceptors map[string]map[string]any `toml:"interceptors"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info in strict mode, debug in dev mode.
	Level string `toml:"level"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	// Driver is the cache driver name: memory (default) or redis.
	Driver string `toml:"driver"`

	// Drivers holds per-driver configuration.
	// Example: [cache.drivers.redis] addr = "localhost:6379"
	Drivers map[string]map[string]any `toml:"drivers"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	// JWTSecret is the HS256 signing secret. Prefer BUSYDAY_JWT_SECRET.
	JWTSecret string `toml:"jwt_secret"`

	// Issuer and Audience are checked when non-empty.
	Issuer   string `toml:"issuer"`
	Audience string `toml:"audience"`

	// LeewaySeconds tolerates clock skew on exp/nbf.
	LeewaySeconds int `toml:"leeway_seconds"`
}

// TelemetryConfig holds OpenTelemetry tracing settings.
type TelemetryConfig struct {
	// Enabled turns on the OTLP/HTTP trace exporter. Default: false.
	Enabled bool `toml:"enabled"`

	// Endpoint is the collector host:port. Default: localhost:4318.
	Endpoint string `toml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `toml:"insecure"`

	ServiceName string `toml:"service_name"`

	// SampleRatio is the fraction of traces kept, 0..1. Default: 1.
	SampleRatio float64 `toml:"sample_ratio"`
}

// ServerConfig holds server-level settings.
type ServerConfig struct {
	// TrustedProxies is a list of CIDR ranges for trusted reverse proxies.
	// X-Forwarded-* headers are only honored from these addresses.
	// Default: ["127.0.0.0/8", "::1/128"]
	TrustedProxies []string `toml:"trusted_proxies"`
}

// TLSConfig holds TLS-related settings.
type TLSConfig struct {
	// Mode is one of: off, static, selfsigned
	Mode string `toml:"mode"`

	// CertFile and KeyFile for static mode
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`

	// SelfSignedDir holds the generated certificate in selfsigned mode.
	// Default: .busyday/certs
	SelfSignedDir string `toml:"selfsigned_dir"`
}

// BuildServiceConfig returns the raw service config map for a given service name.
// Returns nil if the service is not configured in [http.services.<name>].
func (c *Config) BuildServiceConfig(serviceName string) map[string]any {
	if c.HTTP.Services == nil {
		return nil
	}
	svcCfg, ok := c.HTTP.Services[serviceName]
	if !ok {
		return nil
	}
	// Return a copy to prevent mutation
	result := make(map[string]any, len(svcCfg))
	for k, v := range svcCfg {
		result[k] = v
	}
	return result
}

// CacheDriver returns the configured cache driver, defaulting to memory.
func (c *Config) CacheDriver() string {
	if c.Cache.Driver == "" {
		return "memory"
	}
	return c.Cache.Driver
}

func redact(s string) string {
	if s == "" {
		return `""`
	}
	return "[REDACTED]"
}

// Redacted returns a string representation of the config with secrets redacted.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	sb.WriteString(fmt.Sprintf("  Mode: %q,\n", c.Mode))
	sb.WriteString(fmt.Sprintf("  ExternalBasePath: %q,\n", c.ExternalBasePath))
	sb.WriteString(fmt.Sprintf("  ListenAddr: %q,\n", c.ListenAddr))
	sb.WriteString(fmt.Sprintf("  Server: {TrustedProxies: %v},\n", c.Server.TrustedProxies))
	sb.WriteString(fmt.Sprintf("  TLS: {Mode: %q, CertFile: %q, KeyFile: %q, SelfSignedDir: %q},\n",
		c.TLS.Mode, c.TLS.CertFile, c.TLS.KeyFile, c.TLS.SelfSignedDir))
	sb.WriteString("  Store: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Store.Driver))
	sb.WriteString(fmt.Sprintf("    DataDir: %q,\n", c.Store.DataDir))
	if c.Store.Driver == "mysql" {
		sb.WriteString(fmt.Sprintf("    MySQL: {Addr: %q, User: %q, Password: %s, Database: %q},\n",
			c.Store.MySQL.Addr, c.Store.MySQL.User, redact(c.Store.MySQL.Password), c.Store.MySQL.Database))
	}
	sb.WriteString("  },\n")
	sb.WriteString("  Cache: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.CacheDriver()))
	names := make([]string, 0, len(c.Cache.Drivers))
	for name := range c.Cache.Drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	sb.WriteString(fmt.Sprintf("    Drivers: %v,\n", names))
	sb.WriteString("  },\n")
	sb.WriteString("  Auth: {\n")
	sb.WriteString(fmt.Sprintf("    JWTSecret: %s,\n", redact(c.Auth.JWTSecret)))
	sb.WriteString(fmt.Sprintf("    Issuer: %q,\n", c.Auth.Issuer))
	sb.WriteString(fmt.Sprintf("    Audience: %q,\n", c.Auth.Audience))
	sb.WriteString(fmt.Sprintf("    LeewaySeconds: %d,\n", c.Auth.LeewaySeconds))
	sb.WriteString("  },\n")
	sb.WriteString(fmt.Sprintf("  Telemetry: {Enabled: %v, Endpoint: %q, ServiceName: %q, SampleRatio: %g},\n",
		c.Telemetry.Enabled, c.Telemetry.Endpoint, c.Telemetry.ServiceName, c.Telemetry.SampleRatio))
	sb.WriteString(fmt.Sprintf("  Logging: {Level: %q},\n", c.Logging.Level))
	svcNames := make([]string, 0, len(c.HTTP.Services))
	for name := range c.HTTP.Services {
		svcNames = append(svcNames, name)
	}
	sort.Strings(svcNames)
	sb.WriteString(fmt.Sprintf("  HTTP: {Services: %v, InterceptorsCount: %d},\n", svcNames, len(c.HTTP.Interceptors)))
	sb.WriteString("}")
	return sb.String()
}
