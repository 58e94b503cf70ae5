package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "BUSYDAY_"

// envOverrides holds values read from the environment. Nil means unset.
type envOverrides struct {
	Mode             *string `env:"MODE"`
	ListenAddr       *string `env:"LISTEN_ADDR"`
	ExternalBasePath *string `env:"EXTERNAL_BASE_PATH"`
	LoggingLevel     *string `env:"LOG_LEVEL"`

	StoreDriver   *string `env:"STORE_DRIVER"`
	DataDir       *string `env:"DATA_DIR"`
	MySQLAddr     *string `env:"MYSQL_ADDR"`
	MySQLUser     *string `env:"MYSQL_USER"`
	MySQLPassword *string `env:"MYSQL_PASSWORD"`
	MySQLDatabase *string `env:"MYSQL_DATABASE"`

	CacheDriver   *string `env:"CACHE_DRIVER"`
	RedisAddr     *string `env:"REDIS_ADDR"`
	RedisPassword *string `env:"REDIS_PASSWORD"`

	JWTSecret    *string `env:"JWT_SECRET"`
	AuthIssuer   *string `env:"AUTH_ISSUER"`
	AuthAudience *string `env:"AUTH_AUDIENCE"`

	TelemetryEnabled  *bool   `env:"TELEMETRY_ENABLED"`
	TelemetryEndpoint *string `env:"TELEMETRY_ENDPOINT"`
}

// environ returns the process environment merged over the dotenv file, if
// any. Process variables win.
func environ(envFile string) (map[string]string, error) {
	vars := make(map[string]string)
	if envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars, nil
}

// parseEnv decodes the BUSYDAY_* variables from vars.
func parseEnv(vars map[string]string) (envOverrides, error) {
	var o envOverrides
	err := env.ParseWithOptions(&o, env.Options{
		Prefix:      EnvPrefix,
		Environment: vars,
	})
	if err != nil {
		return o, fmt.Errorf("parse env: %w", err)
	}
	return o, nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

// overlayEnv applies environment values onto cfg.
func overlayEnv(cfg *Config, o envOverrides) {
	setString(&cfg.ListenAddr, o.ListenAddr)
	setString(&cfg.ExternalBasePath, o.ExternalBasePath)
	setString(&cfg.Logging.Level, o.LoggingLevel)

	setString(&cfg.Store.Driver, o.StoreDriver)
	setString(&cfg.Store.DataDir, o.DataDir)
	setString(&cfg.Store.MySQL.Addr, o.MySQLAddr)
	setString(&cfg.Store.MySQL.User, o.MySQLUser)
	setString(&cfg.Store.MySQL.Password, o.MySQLPassword)
	setString(&cfg.Store.MySQL.Database, o.MySQLDatabase)

	setString(&cfg.Cache.Driver, o.CacheDriver)
	if o.RedisAddr != nil || o.RedisPassword != nil {
		if cfg.Cache.Drivers == nil {
			cfg.Cache.Drivers = make(map[string]map[string]any)
		}
		redis := cfg.Cache.Drivers["redis"]
		if redis == nil {
			redis = make(map[string]any)
			cfg.Cache.Drivers["redis"] = redis
		}
		if o.RedisAddr != nil && *o.RedisAddr != "" {
			redis["addr"] = *o.RedisAddr
		}
		if o.RedisPassword != nil && *o.RedisPassword != "" {
			redis["password"] = *o.RedisPassword
		}
	}

	setString(&cfg.Auth.JWTSecret, o.JWTSecret)
	setString(&cfg.Auth.Issuer, o.AuthIssuer)
	setString(&cfg.Auth.Audience, o.AuthAudience)

	if o.TelemetryEnabled != nil {
		cfg.Telemetry.Enabled = *o.TelemetryEnabled
	}
	setString(&cfg.Telemetry.Endpoint, o.TelemetryEndpoint)
}
