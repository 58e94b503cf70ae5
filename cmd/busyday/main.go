// Package main is the entrypoint for the busyday server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
	"github.com/MahdiBaghbani/busyday-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/cache"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/config"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/deps"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/auth"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/server"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/telemetry"
	"github.com/MahdiBaghbani/busyday-go/internal/store"

	// Register cache drivers, store drivers, interceptors and services
	_ "github.com/MahdiBaghbani/busyday-go/internal/interceptors/loader"
	_ "github.com/MahdiBaghbani/busyday-go/internal/platform/cache/loader"
	_ "github.com/MahdiBaghbani/busyday-go/internal/services/loader"
	_ "github.com/MahdiBaghbani/busyday-go/internal/store/loader"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	envFile := flag.String("env-file", "", "Path to a dotenv file (optional, process env wins)")
	modeFlag := flag.String("mode", "", "Operating mode: strict or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	externalBasePath := flag.String("external-base-path", "", "External base path (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off, static, or selfsigned (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: memory, sqlite, or mysql (overrides config)")
	dataDir := flag.String("data-dir", "", "Directory for the sqlite database (overrides config)")
	cacheDriver := flag.String("cache-driver", "", "Cache driver: memory or redis (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	issueToken := flag.String("issue-token", "", "Print a bearer token for the given user id and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the token printed by -issue-token")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config with precedence: mode preset -> TOML file -> env -> CLI flags
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		EnvFile:    *envFile,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:       listenAddr,
			ExternalBasePath: externalBasePath,
			TLSMode:          tlsMode,
			StoreDriver:      storeDriver,
			DataDir:          dataDir,
			CacheDriver:      cacheDriver,
			LoggingLevel:     loggingLevel,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Logging.Level)}))
	slog.SetDefault(logger)

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   time.Duration(cfg.Auth.LeewaySeconds) * time.Second,
	})
	if err != nil {
		logger.Error("failed to create token verifier", "error", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		if err := printToken(verifier, *issueToken, *tokenTTL); err != nil {
			logger.Error("failed to issue token", "error", err)
			os.Exit(1)
		}
		return
	}

	// Log effective config with secrets redacted
	logger.Info("effective configuration", "config", cfg.Redacted())

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("failed to set up telemetry", "error", err)
		os.Exit(1)
	}

	// Open the store
	driver, err := store.Open(ctx, &cfg.Store)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	schedStore, ok := driver.(scheduling.Store)
	if !ok {
		logger.Error("store driver does not implement scheduling.Store", "driver", driver.Name())
		os.Exit(1)
	}
	health, _ := driver.(deps.Pinger)
	logger.Info("store ready", "driver", driver.Name())

	// [cache.drivers.<driver>] is passed through as-is
	cacheInstance, err := cache.NewFromConfig(cfg.CacheDriver(), cfg.Cache.Drivers, logger)
	if err != nil {
		logger.Error("failed to create cache", "driver", cfg.CacheDriver(), "error", err)
		os.Exit(1)
	}

	deps.SetDeps(&deps.Deps{
		Store:      schedStore,
		Health:     health,
		Engine:     scheduling.NewEngine(schedStore, logger),
		Aggregator: scheduling.NewAggregator(schedStore, nil, logger),
		Verifier:   verifier,
		Config:     cfg,
		Cache:      cacheInstance,
		RealIP:     realip.NewTrustedProxies(cfg.Server.TrustedProxies),
	})

	services, err := buildServices(cfg, logger)
	if err != nil {
		logger.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger, services)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started, press Ctrl+C to stop")

	<-sigCtx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exitCode := 0
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		exitCode = 1
	}
	if err := cacheInstance.Close(); err != nil {
		logger.Warn("cache close error", "error", err)
	}
	if err := driver.Close(); err != nil {
		logger.Warn("store close error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("telemetry flush error", "error", err)
	}

	logger.Info("server stopped")
	os.Exit(exitCode)
}

// parseLevel maps a config level to slog. slog has no trace, use debug-4.
func parseLevel(s string) slog.Level {
	switch s {
	case "trace":
		return slog.LevelDebug - 4
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildServices constructs every core service from [http.services.<name>].
func buildServices(cfg *config.Config, logger *slog.Logger) (map[string]service.Service, error) {
	services := make(map[string]service.Service, len(service.CoreServices))
	for _, name := range service.CoreServices {
		svc, err := service.Build(name, cfg.BuildServiceConfig(name), logger)
		if err != nil {
			return nil, err
		}
		services[name] = svc
	}
	return services, nil
}

func printToken(v *auth.Verifier, rawID string, ttl time.Duration) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", rawID, err)
	}
	token, err := v.IssueToken(id, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
