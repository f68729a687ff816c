package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/civic-kit/report-service/internal/api/http"
	"github.com/civic-kit/report-service/internal/api/http/handlers"
	"github.com/civic-kit/report-service/internal/auth"
	"github.com/civic-kit/report-service/internal/cache"
	"github.com/civic-kit/report-service/internal/config"
	"github.com/civic-kit/report-service/internal/events"
	"github.com/civic-kit/report-service/internal/firewall"
	"github.com/civic-kit/report-service/internal/observability"
	"github.com/civic-kit/report-service/internal/persistence"
	"github.com/civic-kit/report-service/internal/repository"
	"github.com/civic-kit/report-service/internal/service"
	"github.com/civic-kit/report-service/internal/worker"
)

const shutdownTimeout = 15 * time.Second

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

	classifier, err := firewall.NewClassifier(cfg.Firewall.SensitiveCategory)
	if err != nil {
		logger.Fatal("invalid sensitive category", zap.Error(err))
	}
	guard, err := firewall.NewGuard(classifier, cfg.Stats.KAnonymity, cfg.Stats.GeohashPrecision)
	if err != nil {
		logger.Fatal("invalid aggregate guard settings", zap.Error(err))
	}
	contacts := make([]firewall.EmergencyContact, 0, len(cfg.Firewall.EmergencyContacts))
	for _, contact := range cfg.Firewall.EmergencyContacts {
		contacts = append(contacts, firewall.EmergencyContact{Label: contact.Label, Number: contact.Number})
	}
	projector := firewall.NewProjector(contacts)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, generatedMigrations(classifier), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	} else if classifier.Marker() != firewall.DefaultSensitiveCategory {
		logger.Warn("migrations disabled with a non-default sensitive category; apply `policyctl rls` output before accepting reports",
			zap.String("sensitive_category", string(classifier.Marker())))
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	statsCache := cache.NewStatsCache(redis.Client, cfg.Stats.CacheTTL())
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	accountRepo := repository.NewAccountRepository(pool)
	reportRepo := repository.NewReportRepository(pool)
	historyRepo := repository.NewHistoryRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)

	authService := service.NewAuthService(*cfg, accountRepo)
	reportService := service.NewReportService(service.ReportDependencies{
		ReportRepo:  reportRepo,
		HistoryRepo: historyRepo,
		Classifier:  classifier,
		Projector:   projector,
		Cache:       statsCache,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	statsService := service.NewStatsService(service.StatsDependencies{
		StatsRepo:              statsRepo,
		Guard:                  guard,
		Cache:                  statsCache,
		Metrics:                metrics,
		Logger:                 logger,
		SensitiveTotalApproved: cfg.Stats.PublicSensitiveTotalApproved,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationService.RegisterHandlers()

	scheduler, err := worker.NewStatsScheduler(statsService, cfg.Stats.RefreshCron, logger)
	if err != nil {
		logger.Fatal("failed to schedule stats refresh", zap.Error(err))
	}
	scheduler.Start()

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), accountRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Reports:        handlers.NewReportsHandler(reportService),
		Staff:          handlers.NewStaffReportsHandler(reportService),
		Admin:          handlers.NewAdminHandler(authService),
		Public:         handlers.NewPublicStatsHandler(statsService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("sensitive_category", string(classifier.Marker())))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	scheduler.Stop(shutdownCtx)
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

// generatedMigrations renders the RLS policy for the configured marker so the
// category CHECK constraint always agrees with the classifier.
func generatedMigrations(classifier firewall.Classifier) map[string]string {
	return map[string]string{
		persistence.RowLevelSecurityMigration: firewall.RowLevelSecuritySQL(classifier),
	}
}
