package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sla-service/internal/api/http"
	"github.com/spec-kit/sla-service/internal/api/http/handlers"
	"github.com/spec-kit/sla-service/internal/auth"
	"github.com/spec-kit/sla-service/internal/config"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/observability"
	"github.com/spec-kit/sla-service/internal/persistence"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/service"
	"github.com/spec-kit/sla-service/internal/sla"
	"github.com/spec-kit/sla-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.Enabled() {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		policyRepo repository.PolicyRepository
		stores     *repository.RequestStoreRegistry
		recipients repository.RecipientRepository
		reports    repository.ReportRepository
	)
	if pg.Enabled() {
		pool := pg.PoolHandle()
		policyRepo = repository.NewPolicyRepository(pool)
		stores = repository.NewPostgresRequestStores(pool, logger)
		recipients = repository.NewRecipientRepository(pool)
	} else {
		policyRepo = repository.NewMemoryPolicyRepository()
		stores, _ = repository.NewMemoryRequestStores()
		recipients = repository.NewStaticRecipientRepository(cfg.SLA.ReportRecipients)
	}
	if redis.Available() {
		reports = repository.NewRedisReportRepository(redis.Client, cfg.SLA.ReportRetention())
	} else {
		reports = repository.NewMemoryReportRepository()
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification, metrics)
	worker.StartNotificationWorker(notifications, cfg.Notification, logger)

	policyService := service.NewPolicyService(policyRepo, logger)
	slaService := service.NewSLAService(policyService, sla.NewEngine(nil), logger)
	sweepService := service.NewSweepService(service.SweepDependencies{
		Stores:     stores,
		Policies:   policyService,
		Reports:    reports,
		Recipients: recipients,
		Notifier:   notifications,
		Metrics:    metrics,
		Logger:     logger,
		Workers:    cfg.SLA.SweepWorkers,
		Timeout:    cfg.SLA.SweepTimeout(),
	})

	scheduler, err := worker.NewScheduler(sweepService, worker.SchedulerConfig{
		Interval:     cfg.SLA.SweepInterval(),
		DailyCron:    cfg.SLA.DailyReportCron,
		SweepOnStart: cfg.SLA.SweepOnStart,
	}, logger)
	if err != nil {
		logger.Fatal("failed to configure scheduler", zap.Error(err))
	}
	scheduler.Start(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL())
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	dependencies := map[string]handlers.Pinger{}
	if pg.Enabled() {
		dependencies["postgres"] = pg
	}
	if redis.Available() {
		dependencies["redis"] = redis
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		SLA:            handlers.NewSLAHandler(slaService),
		Policies:       handlers.NewPoliciesHandler(policyService),
		Sweeps:         handlers.NewSweepsHandler(sweepService),
		AuthMiddleware: authMiddleware,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	scheduler.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
