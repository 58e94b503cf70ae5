package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/auth"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/busyday-go/internal/store"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeDev    Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of strict, dev", s)
	}
}

// DevJWTSecret is the signing secret of the dev preset. Never use it in
// strict mode.
const DevJWTSecret = "busyday-dev-secret-do-not-use-in-production"

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// EnvFile is an optional dotenv file. Process variables take precedence.
	EnvFile string

	// ModeFlag is the --mode flag value (overrides env and config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override all other sources.
	FlagOverrides FlagOverrides

	// Environment replaces the process environment when non-nil (tests).
	Environment map[string]string

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr       *string
	ExternalBasePath *string
	TLSMode          *string
	StoreDriver      *string
	DataDir          *string
	CacheDriver      *string
	LoggingLevel     *string
}

// fileConfig mirrors Config but with pointer fields to detect presence.
type fileConfig struct {
	Mode             string        `toml:"mode"`
	ListenAddr       string        `toml:"listen_addr"`
	ExternalBasePath string        `toml:"external_base_path"`
	Server           *serverConfig `toml:"server"`

	TLS       *TLSConfig       `toml:"tls"`
	Store     *storeConfig     `toml:"store"`
	Cache     *CacheConfig     `toml:"cache"`
	Auth      *AuthConfig      `toml:"auth"`
	Telemetry *telemetryConfig `toml:"telemetry"`
	Logging   *LoggingConfig   `toml:"logging"`
	HTTP      *HTTPConfig      `toml:"http"`
}

type serverConfig struct {
	TrustedProxies []string `toml:"trusted_proxies"`
}

type storeConfig struct {
	Driver  string       `toml:"driver"`
	DataDir string       `toml:"data_dir"`
	MySQL   *mysqlConfig `toml:"mysql"`
}

type mysqlConfig struct {
	Addr     string `toml:"addr"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type telemetryConfig struct {
	Enabled     *bool    `toml:"enabled"`
	Endpoint    string   `toml:"endpoint"`
	Insecure    *bool    `toml:"insecure"`
	ServiceName string   `toml:"service_name"`
	SampleRatio *float64 `toml:"sample_ratio"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > BUSYDAY_MODE > mode in config file > strict
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay BUSYDAY_* environment variables
//  5. Overlay CLI flags
//  6. Validate
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid TOML,
// Load returns an error (fail fast). Unknown/undecoded TOML keys produce a warning
// but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig
	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	vars := opts.Environment
	if vars == nil {
		var err error
		if vars, err = environ(opts.EnvFile); err != nil {
			return nil, err
		}
	}
	envCfg, err := parseEnv(vars)
	if err != nil {
		return nil, err
	}

	modeStr := fc.Mode
	if envCfg.Mode != nil && *envCfg.Mode != "" {
		modeStr = *envCfg.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}
	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := presetForMode(mode)
	overlayFileConfig(cfg, &fc)
	overlayEnv(cfg, envCfg)
	overlayFlags(cfg, opts.FlagOverrides)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return StrictConfig()
}

// StrictConfig returns production-safe strict defaults. The JWT secret has
// no default and must be supplied.
func StrictConfig() *Config {
	return &Config{
		Mode:       string(ModeStrict),
		ListenAddr: ":8080",
		Server: ServerConfig{
			TrustedProxies: []string{"127.0.0.0/8", "::1/128"},
		},
		TLS: TLSConfig{Mode: "off", SelfSignedDir: ".busyday/certs"},
		Store: storeDefaults("sqlite"),
		Cache: CacheConfig{Driver: "memory"},
		Auth: AuthConfig{
			Issuer:        "busyday",
			LeewaySeconds: 30,
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "busyday",
			SampleRatio: 1,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// DevConfig returns development mode defaults.
func DevConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeDev)
	cfg.Store = storeDefaults("memory")
	cfg.Auth.JWTSecret = DevJWTSecret
	cfg.Telemetry.Insecure = true
	cfg.Logging.Level = "debug"
	return cfg
}

func storeDefaults(driver string) store.DriverConfig {
	return store.DriverConfig{Driver: driver, DataDir: ".busyday/data"}
}

// overlayFileConfig applies TOML file values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.ExternalBasePath != "" {
		cfg.ExternalBasePath = fc.ExternalBasePath
	}
	if fc.Server != nil && len(fc.Server.TrustedProxies) > 0 {
		cfg.Server.TrustedProxies = fc.Server.TrustedProxies
	}

	if fc.TLS != nil {
		if fc.TLS.Mode != "" {
			cfg.TLS.Mode = fc.TLS.Mode
		}
		if fc.TLS.CertFile != "" {
			cfg.TLS.CertFile = fc.TLS.CertFile
		}
		if fc.TLS.KeyFile != "" {
			cfg.TLS.KeyFile = fc.TLS.KeyFile
		}
		if fc.TLS.SelfSignedDir != "" {
			cfg.TLS.SelfSignedDir = fc.TLS.SelfSignedDir
		}
	}

	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
		if m := fc.Store.MySQL; m != nil {
			cfg.Store.MySQL.Addr = m.Addr
			cfg.Store.MySQL.User = m.User
			cfg.Store.MySQL.Password = m.Password
			cfg.Store.MySQL.Database = m.Database
		}
	}

	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if len(fc.Cache.Drivers) > 0 {
			cfg.Cache.Drivers = fc.Cache.Drivers
		}
	}

	if fc.Auth != nil {
		if fc.Auth.JWTSecret != "" {
			cfg.Auth.JWTSecret = fc.Auth.JWTSecret
		}
		if fc.Auth.Issuer != "" {
			cfg.Auth.Issuer = fc.Auth.Issuer
		}
		if fc.Auth.Audience != "" {
			cfg.Auth.Audience = fc.Auth.Audience
		}
		if fc.Auth.LeewaySeconds != 0 {
			cfg.Auth.LeewaySeconds = fc.Auth.LeewaySeconds
		}
	}

	if t := fc.Telemetry; t != nil {
		if t.Enabled != nil {
			cfg.Telemetry.Enabled = *t.Enabled
		}
		if t.Endpoint != "" {
			cfg.Telemetry.Endpoint = t.Endpoint
		}
		if t.Insecure != nil {
			cfg.Telemetry.Insecure = *t.Insecure
		}
		if t.ServiceName != "" {
			cfg.Telemetry.ServiceName = t.ServiceName
		}
		if t.SampleRatio != nil {
			cfg.Telemetry.SampleRatio = *t.SampleRatio
		}
	}

	if fc.Logging != nil && fc.Logging.Level != "" {
		cfg.Logging.Level = fc.Logging.Level
	}

	if fc.HTTP != nil {
		if len(fc.HTTP.Services) > 0 {
			if cfg.HTTP.Services == nil {
				cfg.HTTP.Services = make(map[string]map[string]any)
			}
			for name, svcCfg := range fc.HTTP.Services {
				cfg.HTTP.Services[name] = svcCfg
			}
		}
		if len(fc.HTTP.Interceptors) > 0 {
			if cfg.HTTP.Interceptors == nil {
				cfg.HTTP.Interceptors = make(map[string]map[string]any)
			}
			for name, intCfg := range fc.HTTP.Interceptors {
				cfg.HTTP.Interceptors[name] = intCfg
			}
		}
	}
}

// overlayFlags applies CLI flag values onto cfg.
func overlayFlags(cfg *Config, f FlagOverrides) {
	setString(&cfg.ListenAddr, f.ListenAddr)
	setString(&cfg.ExternalBasePath, f.ExternalBasePath)
	setString(&cfg.TLS.Mode, f.TLSMode)
	setString(&cfg.Store.Driver, f.StoreDriver)
	setString(&cfg.Store.DataDir, f.DataDir)
	setString(&cfg.Cache.Driver, f.CacheDriver)
	setString(&cfg.Logging.Level, f.LoggingLevel)
}

// validate checks enum-like fields and cross-field requirements.
func validate(cfg *Config) error {
	switch cfg.TLS.Mode {
	case "off":
	case "static":
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return fmt.Errorf("tls.mode static requires tls.cert_file and tls.key_file")
		}
	case "selfsigned":
		if Mode(cfg.Mode) == ModeStrict {
			return fmt.Errorf("tls.mode selfsigned is only allowed in dev mode")
		}
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static, selfsigned", cfg.TLS.Mode)
	}

	switch cfg.Store.Driver {
	case "memory":
	case "sqlite":
		if cfg.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir is required for the sqlite driver")
		}
	case "mysql":
		if cfg.Store.MySQL.Addr == "" || cfg.Store.MySQL.Database == "" {
			return fmt.Errorf("store.mysql.addr and store.mysql.database are required for the mysql driver")
		}
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of memory, sqlite, mysql", cfg.Store.Driver)
	}

	switch cfg.CacheDriver() {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid cache.driver %q: must be one of memory or redis", cfg.Cache.Driver)
	}

	if len(cfg.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes (set %sJWT_SECRET)", auth.MinSecretLength, EnvPrefix)
	}
	if Mode(cfg.Mode) == ModeStrict && cfg.Auth.JWTSecret == DevJWTSecret {
		return fmt.Errorf("auth.jwt_secret: the dev secret is not allowed in strict mode")
	}
	if cfg.Auth.LeewaySeconds < 0 {
		return fmt.Errorf("auth.leeway_seconds must not be negative")
	}

	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1, got %g", cfg.Telemetry.SampleRatio)
	}

	for _, entry := range cfg.Server.TrustedProxies {
		if !realip.ValidEntry(entry) {
			return fmt.Errorf("server.trusted_proxies: invalid entry %q", entry)
		}
	}

	if p := cfg.ExternalBasePath; p != "" && (!strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/")) {
		return fmt.Errorf("invalid external_base_path %q: must start with / and not end with /", p)
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of trace, debug, info, warn, error", cfg.Logging.Level)
	}

	return validateRatelimitConfig(cfg)
}

// validateRatelimitConfig validates ratelimit interceptor configuration.
// Profiles are defined at [http.interceptors.ratelimit.profiles.<name>].
// Services opt-in via [http.services.<svc>.ratelimit] with profile = "<name>".
// If a service references a profile, that profile must exist.
func validateRatelimitConfig(cfg *Config) error {
	profiles := make(map[string]bool)
	if rlCfg, ok := cfg.HTTP.Interceptors["ratelimit"]; ok {
		if profilesRaw, ok := rlCfg["profiles"]; ok {
			profilesMap, ok := profilesRaw.(map[string]any)
			if !ok {
				return fmt.Errorf("http.interceptors.ratelimit.profiles must be a map")
			}
			for name, profile := range profilesMap {
				if _, ok := profile.(map[string]any); !ok {
					return fmt.Errorf("http.interceptors.ratelimit.profiles.%s must be a map", name)
				}
				profiles[name] = true
			}
		}
	}

	for svcName, svcCfg := range cfg.HTTP.Services {
		rlMap, ok := svcCfg["ratelimit"].(map[string]any)
		if !ok {
			continue
		}
		if profileStr, ok := rlMap["profile"].(string); ok && !profiles[profileStr] {
			return fmt.Errorf("http.services.%s.ratelimit references undefined profile %q", svcName, profileStr)
		}
	}
	return nil
}
