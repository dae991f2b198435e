// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Foundry access-control HTTP server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis when it backs the session store.
//  5. Run database migrations (idempotent).
//  6. Wire repositories, the auth service and the expiry sweeper.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/foundry/internal/api"
	"github.com/taibuivan/foundry/internal/platform/config"
	"github.com/taibuivan/foundry/internal/platform/constants"
	"github.com/taibuivan/foundry/internal/platform/middleware"
	"github.com/taibuivan/foundry/internal/platform/migration"
	pgstore "github.com/taibuivan/foundry/internal/platform/postgres"
	redisstore "github.com/taibuivan/foundry/internal/platform/redis"
	"github.com/taibuivan/foundry/internal/platform/sec"
	"github.com/taibuivan/foundry/internal/users/account"
	"github.com/taibuivan/foundry/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String(constants.FieldApp, constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String(constants.FieldVersion, constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String(constants.FieldApp, constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("session_backend", cfg.SessionBackend),
		slog.Duration("session_ttl", cfg.SessionTTL),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, pgstore.DefaultOptions(), log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	var rdb *redis.Client
	if cfg.SessionBackend == config.SessionBackendRedis {
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing_redis_client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_failed", slog.Any("error", cerr))
			}
		}()
	}

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Health handlers (wired with real dependency checkers) ──────────
	health := api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
	}
	if rdb != nil {
		health.CheckSessionStore = func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		}
	}
	liveness, readiness := api.NewHealthHandlers(health, log)

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	hasher, err := sec.NewArgon2Hasher(sec.Argon2Params{
		MemoryKB:    cfg.Argon2MemoryKB,
		Time:        cfg.Argon2Time,
		Parallelism: cfg.Argon2Parallelism,
	})
	must(log, err, "configure password hasher")

	userRepository := auth.NewUserRepository(pool)
	permissionRepository := auth.NewPermissionRepository(pool)

	var sessionRepository auth.SessionRepository = auth.NewSessionRepository(pool)
	if rdb != nil {
		sessionRepository = auth.NewRedisSessionRepository(rdb)
	}

	backend := auth.NewDatabaseBackend(userRepository, permissionRepository, hasher)
	authService := auth.NewService(backend, sessionRepository, auth.WithSessionTTL(cfg.SessionTTL))

	sweeper := auth.NewSweeper(sessionRepository, log, auth.WithSweepInterval(cfg.SweepInterval))

	loginLimiter := middleware.NewRateLimiter(constants.LoginRateLimitRPS, constants.LoginRateLimitBurst)
	authHandler := auth.NewHandler(authService, sweeper, auth.HandlerOptions{
		CookieName:       cfg.SessionCookieName,
		CookieSecure:     cfg.SessionCookieSecure || cfg.IsProduction(),
		DetailedFeedback: cfg.DetailedLoginFeedback(),
		LoginLimiter:     loginLimiter.Middleware,
	})

	accountService := account.NewService(account.Dependencies{
		Users:       userRepository,
		Permissions: permissionRepository,
		Groups:      account.NewGroupRepository(pool),
		Sessions:    sessionRepository,
		Hasher:      hasher,
	}, log)

	// ── 8. Background Workers ─────────────────────────────────────────────
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	go loginLimiter.Run(workerCtx)
	sweeper.Start(workerCtx)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		Account:   account.NewHandler(accountService),
	}

	server := api.NewServer(workerCtx, cfg, log, authService, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting_down_server", slog.Duration("timeout", shutdownTimeout))

	shutdownErr := server.Shutdown(shutdownTimeout)

	// Stop the sweeper only after the server has drained.
	sweeper.Stop()
	stopWorkers()

	if shutdownErr != nil {
		log.Error("shutdown_failed", slog.Any("error", shutdownErr))
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
