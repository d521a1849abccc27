package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HammerMeetNail/tokengate/internal/auth"
	"github.com/HammerMeetNail/tokengate/internal/authz"
	"github.com/HammerMeetNail/tokengate/internal/config"
	"github.com/HammerMeetNail/tokengate/internal/database"
	"github.com/HammerMeetNail/tokengate/internal/directory"
	"github.com/HammerMeetNail/tokengate/internal/handlers"
	"github.com/HammerMeetNail/tokengate/internal/logging"
	"github.com/HammerMeetNail/tokengate/internal/middleware"
	"github.com/HammerMeetNail/tokengate/internal/services"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, ok := logging.ParseLevel(cfg.Server.LogLevel)
	if !ok {
		logger.Warn("Unknown LOG_LEVEL; using info", map[string]interface{}{"value": cfg.Server.LogLevel})
	}
	logger.SetLevel(level)
	logging.SetDefaultLevel(level)

	logger.Info("Starting tokengate server...", map[string]interface{}{
		"version": version,
		"env":     cfg.Server.Environment,
		"backend": cfg.Auth.RemoteBackend,
	})

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	logger.Info("Connecting to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
	redisDB, err := database.NewRedisDB(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbAdapter := services.NewPoolAdapter(db.Pool)
	userService := services.NewUserService(dbAdapter)
	tokenService := services.NewTokenService(dbAdapter)
	grantService := services.NewGrantService(dbAdapter)
	passwordService := services.NewPasswordService()

	runtimeConfig := services.NewRuntimeConfigService(services.NewRedisAdapter(redisDB.Client), auth.Settings{
		MaintenanceMode: cfg.Auth.MaintenanceMode,
		LoginRequired:   cfg.Auth.LoginRequired,
	}, logger)
	if err := runtimeConfig.Seed(ctx); err != nil {
		return fmt.Errorf("seeding runtime config: %w", err)
	}

	if err := bootstrapSuperuser(ctx, cfg.Auth, userService, tokenService, passwordService, logger); err != nil {
		return err
	}

	enforcer, err := authz.NewEnforcer(ctx, grantService, cfg.Auth.ExemptViewPermissions, logger)
	if err != nil {
		return fmt.Errorf("loading permission policy: %w", err)
	}

	resolver := auth.NewTokenResolver(tokenService, runtimeConfig, logger).
		WithLastUsedInterval(cfg.Auth.LastUsedInterval)
	if cfg.DirectoryOverride() {
		resolver = resolver.WithIdentityProvider(directory.NewLDAPProvider(cfg.LDAP, userService, logger))
		logger.Info("Directory identity override enabled", map[string]interface{}{"server": cfg.LDAP.ServerURI})
	}

	handler := newRouter(routerDeps{
		health:        handlers.NewHealthHandler(db, redisDB, runtimeConfig),
		status:        handlers.NewStatusHandler(runtimeConfig, version),
		tokens:        handlers.NewTokenHandler(tokenService, logger),
		provision:     handlers.NewProvisionHandler(userService, tokenService, passwordService, logger),
		auth:          middleware.NewAuthMiddleware(resolver, runtimeConfig, logger),
		permissions:   middleware.NewPermissionMiddleware(enforcer, runtimeConfig, logger),
		security:      middleware.NewSecurityHeaders(cfg.Server.Secure),
		requestLogger: middleware.NewRequestLogger(logger),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)
	go func() {
		for range reload {
			reloadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := enforcer.Reload(reloadCtx); err != nil {
				logger.Error("Permission policy reload failed", map[string]interface{}{"error": err.Error()})
			}
			cancel()
		}
	}()

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{"addr": addr})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}
