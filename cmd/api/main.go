package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/token-authority/internal/api/http"
	"github.com/spec-kit/token-authority/internal/api/http/handlers"
	"github.com/spec-kit/token-authority/internal/auth"
	"github.com/spec-kit/token-authority/internal/config"
	"github.com/spec-kit/token-authority/internal/events"
	"github.com/spec-kit/token-authority/internal/observability"
	"github.com/spec-kit/token-authority/internal/persistence"
	"github.com/spec-kit/token-authority/internal/repository"
	"github.com/spec-kit/token-authority/internal/service"
	"github.com/spec-kit/token-authority/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	deps := map[string]handlers.Pinger{"postgres": pg}
	authOpts := []auth.Option{}
	var (
		revocations repository.RevocationRepository
		checker     auth.RevocationChecker
	)
	if cfg.Auth.RevocationEnabled {
		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()

		revocations = repository.NewRevocationRepository(redis.Client)
		checker = revocations
		deps["redis"] = redis
		authOpts = append(authOpts, auth.WithTokenIDs())
	} else {
		deps["redis"] = nil
	}

	authority, err := auth.NewAuthority(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL(), authOpts...)
	if err != nil {
		logger.Fatal("failed to build token authority", zap.Error(err))
	}

	var users repository.UserRepository
	if pool != nil {
		users = repository.NewUserRepository(pool)
	}

	authService := service.NewAuthService(cfg.Auth, authority, service.AuthDependencies{
		Users:       users,
		Revocations: revocations,
		Dispatcher:  dispatcher,
	})

	if cfg.Auth.BootstrapAdminEmail != "" {
		created, err := authService.EnsureBootstrapAdmin(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword)
		if err != nil {
			logger.Fatal("failed to bootstrap admin", zap.Error(err))
		}
		if created {
			logger.Info("bootstrap admin created", zap.String("email", cfg.Auth.BootstrapAdminEmail))
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: cfg.App.RequestTimeout(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(authService),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewGate(authority, checker), dispatcher),
		LoginLimiter:   httptransport.NewRateLimiter(cfg.Auth.LoginRatePerMinute),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.Bool("revocation", cfg.Auth.RevocationEnabled))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
