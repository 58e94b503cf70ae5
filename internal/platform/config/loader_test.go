package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// strictEnv satisfies the strict preset's secret requirement without
// touching the process environment.
func strictEnv(extra ...string) map[string]string {
	env := map[string]string{"BUSYDAY_JWT_SECRET": testSecret}
	for i := 0; i+1 < len(extra); i += 2 {
		env[extra[i]] = extra[i+1]
	}
	return env
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{"strict", "strict", ModeStrict, false},
		{"dev", "dev", ModeDev, false},
		{"empty defaults to strict", "", ModeStrict, false},
		{"uppercase", "STRICT", ModeStrict, false},
		{"whitespace", "  dev  ", ModeDev, false},
		{"interop is gone", "interop", "", true},
		{"invalid", "invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoad_StrictRequiresSecret(t *testing.T) {
	_, err := Load(LoaderOptions{Environment: map[string]string{}})
	if err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("expected jwt_secret error, got %v", err)
	}

	_, err = Load(LoaderOptions{Environment: map[string]string{"BUSYDAY_JWT_SECRET": DevJWTSecret}})
	if err == nil || !strings.Contains(err.Error(), "dev secret") {
		t.Fatalf("expected dev secret rejection in strict mode, got %v", err)
	}
}

func TestLoad_StrictDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{Environment: strictEnv()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "strict" {
		t.Errorf("expected mode strict, got %s", cfg.Mode)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected sqlite store in strict mode, got %s", cfg.Store.Driver)
	}
	if cfg.CacheDriver() != "memory" {
		t.Errorf("expected memory cache, got %s", cfg.CacheDriver())
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected info logging, got %s", cfg.Logging.Level)
	}
	if cfg.Telemetry.Enabled {
		t.Error("telemetry should be off by default")
	}
}

func TestLoad_DevMode(t *testing.T) {
	cfg, err := Load(LoaderOptions{ModeFlag: "dev", Environment: map[string]string{}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "dev" {
		t.Errorf("expected mode dev, got %s", cfg.Mode)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected memory store in dev, got %s", cfg.Store.Driver)
	}
	if cfg.Auth.JWTSecret != DevJWTSecret {
		t.Error("expected dev secret preset")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug logging in dev, got %s", cfg.Logging.Level)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
mode = "strict"
listen_addr = ":9999"
external_base_path = "/busyday"

[server]
trusted_proxies = ["10.0.0.0/8"]

[store]
driver = "mysql"

[store.mysql]
addr = "db:3306"
user = "busyday"
database = "busyday"

[cache]
driver = "redis"

[cache.drivers.redis]
addr = "valkey:6379"

[auth]
issuer = "example"
audience = "calendar"

[telemetry]
enabled = true
endpoint = "otel:4318"
sample_ratio = 0.25

[logging]
level = "warn"
`)

	cfg, err := Load(LoaderOptions{ConfigPath: path, Environment: strictEnv()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.ExternalBasePath != "/busyday" {
		t.Errorf("ExternalBasePath = %q", cfg.ExternalBasePath)
	}
	if len(cfg.Server.TrustedProxies) != 1 || cfg.Server.TrustedProxies[0] != "10.0.0.0/8" {
		t.Errorf("TrustedProxies = %v", cfg.Server.TrustedProxies)
	}
	if cfg.Store.Driver != "mysql" || cfg.Store.MySQL.Addr != "db:3306" || cfg.Store.MySQL.Database != "busyday" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Store.DataDir == "" {
		t.Error("DataDir preset should survive a partial [store] table")
	}
	if cfg.Cache.Driver != "redis" || cfg.Cache.Drivers["redis"]["addr"] != "valkey:6379" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Auth.Issuer != "example" || cfg.Auth.Audience != "calendar" {
		t.Errorf("Auth issuer/audience = %q/%q", cfg.Auth.Issuer, cfg.Auth.Audience)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "otel:4318" || cfg.Telemetry.SampleRatio != 0.25 {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
mode = "dev"
listen_addr = ":1000"

[logging]
level = "error"

[store]
driver = "sqlite"
`)

	listen := ":3000"
	cfg, err := Load(LoaderOptions{
		ConfigPath: path,
		Environment: map[string]string{
			"BUSYDAY_LISTEN_ADDR":  ":2000",
			"BUSYDAY_LOG_LEVEL":    "warn",
			"BUSYDAY_STORE_DRIVER": "memory",
		},
		FlagOverrides: FlagOverrides{ListenAddr: &listen},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":3000" {
		t.Errorf("flag should win: ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override file: level = %q", cfg.Logging.Level)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("env should override file: store = %q", cfg.Store.Driver)
	}
}

func TestLoad_ModePrecedence(t *testing.T) {
	path := writeConfig(t, `mode = "strict"`)

	cfg, err := Load(LoaderOptions{ConfigPath: path, Environment: map[string]string{"BUSYDAY_MODE": "dev"}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Mode != "dev" {
		t.Errorf("env mode should override file: got %s", cfg.Mode)
	}

	cfg, err = Load(LoaderOptions{ConfigPath: path, ModeFlag: "strict", Environment: strictEnv("BUSYDAY_MODE", "dev")})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Mode != "strict" {
		t.Errorf("flag mode should override env: got %s", cfg.Mode)
	}
}

func TestLoad_SecretsFromEnv(t *testing.T) {
	path := writeConfig(t, `
[store]
driver = "mysql"

[store.mysql]
addr = "db:3306"
database = "busyday"
`)
	cfg, err := Load(LoaderOptions{
		ConfigPath: path,
		Environment: strictEnv(
			"BUSYDAY_MYSQL_PASSWORD", "s3cret",
			"BUSYDAY_REDIS_PASSWORD", "r3dis",
			"BUSYDAY_TELEMETRY_ENABLED", "true",
		),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Error("JWT secret not taken from env")
	}
	if cfg.Store.MySQL.Password != "s3cret" {
		t.Error("MySQL password not taken from env")
	}
	if cfg.Cache.Drivers["redis"]["password"] != "r3dis" {
		t.Errorf("redis password not taken from env: %v", cfg.Cache.Drivers)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("telemetry flag not taken from env")
	}
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	_, err := Load(LoaderOptions{Environment: strictEnv("BUSYDAY_TELEMETRY_ENABLED", "sometimes")})
	if err == nil {
		t.Fatal("expected error for non-boolean BUSYDAY_TELEMETRY_ENABLED")
	}
}

func TestEnviron_DotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "BUSYDAY_JWT_SECRET=" + testSecret + "\nBUSYDAY_LISTEN_ADDR=:7070\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("BUSYDAY_LISTEN_ADDR", ":7171")

	cfg, err := Load(LoaderOptions{EnvFile: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Error("secret from env file not applied")
	}
	if cfg.ListenAddr != ":7171" {
		t.Errorf("process env should win over env file: ListenAddr = %q", cfg.ListenAddr)
	}

	if _, err := Load(LoaderOptions{EnvFile: filepath.Join(t.TempDir(), "missing.env")}); err == nil {
		t.Error("expected error for missing env file")
	}
}

func TestLoad_FailsFast(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid toml", "this is [not valid", "failed to parse"},
		{"invalid mode", `mode = "interop"`, "invalid mode"},
		{"tls acme", "[tls]\nmode = \"acme\"", "invalid tls.mode"},
		{"static without cert", "[tls]\nmode = \"static\"", "cert_file"},
		{"selfsigned in strict", "[tls]\nmode = \"selfsigned\"", "only allowed in dev"},
		{"unknown store", "[store]\ndriver = \"postgres\"", "invalid store.driver"},
		{"mysql without addr", "[store]\ndriver = \"mysql\"", "store.mysql.addr"},
		{"unknown cache", "[cache]\ndriver = \"memcached\"", "invalid cache.driver"},
		{"bad proxy", "[server]\ntrusted_proxies = [\"10.0.0.0/99\"]", "trusted_proxies"},
		{"bad base path", `external_base_path = "busyday/"`, "external_base_path"},
		{"bad sample ratio", "[telemetry]\nsample_ratio = 2.0", "sample_ratio"},
		{"bad log level", "[logging]\nlevel = \"verbose\"", "logging.level"},
		{"negative leeway", "[auth]\nleeway_seconds = -1", "leeway_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(LoaderOptions{ConfigPath: path, Environment: strictEnv()})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingConfigFile_FailsFast(t *testing.T) {
	_, err := Load(LoaderOptions{ConfigPath: "/nonexistent/config.toml", Environment: strictEnv()})
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_UndecodedKeys_WarnsButSucceeds(t *testing.T) {
	path := writeConfig(t, `
listen_addr = ":8081"
unknown_key = "value"

[store]
driver = "memory"
pool = 4
`)
	cfg, err := Load(LoaderOptions{ConfigPath: path, Environment: strictEnv()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":8081" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestLoad_RatelimitProfiles(t *testing.T) {
	valid := writeConfig(t, `
[http.interceptors.ratelimit.profiles.mutations]
requests_per_window = 20
window_seconds = 60

[http.services.api.ratelimit]
profile = "mutations"
`)
	cfg, err := Load(LoaderOptions{ConfigPath: valid, Environment: strictEnv()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	svc := cfg.BuildServiceConfig("api")
	if svc == nil {
		t.Fatal("expected api service config")
	}
	svc["extra"] = true
	if _, ok := cfg.HTTP.Services["api"]["extra"]; ok {
		t.Error("BuildServiceConfig should return a copy")
	}

	undefined := writeConfig(t, `
[http.services.api.ratelimit]
profile = "missing"
`)
	_, err = Load(LoaderOptions{ConfigPath: undefined, Environment: strictEnv()})
	if err == nil || !strings.Contains(err.Error(), "undefined profile") {
		t.Errorf("expected undefined profile error, got %v", err)
	}
}

func TestConfig_Redacted(t *testing.T) {
	cfg := StrictConfig()
	cfg.Auth.JWTSecret = testSecret
	cfg.Store.Driver = "mysql"
	cfg.Store.MySQL.Password = "hunter2"

	out := cfg.Redacted()
	for _, secret := range []string{testSecret, "hunter2"} {
		if strings.Contains(out, secret) {
			t.Errorf("Redacted() leaks %q", secret)
		}
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("Redacted() should mark redacted fields")
	}
	if !strings.Contains(out, `Driver: "mysql"`) {
		t.Error("Redacted() should include non-secret fields")
	}
}
