package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-resolution/internal/api/http"
	"github.com/spec-kit/ticket-resolution/internal/api/http/handlers"
	"github.com/spec-kit/ticket-resolution/internal/assist"
	"github.com/spec-kit/ticket-resolution/internal/closing"
	"github.com/spec-kit/ticket-resolution/internal/config"
	"github.com/spec-kit/ticket-resolution/internal/corpus"
	"github.com/spec-kit/ticket-resolution/internal/events"
	"github.com/spec-kit/ticket-resolution/internal/observability"
	"github.com/spec-kit/ticket-resolution/internal/persistence"
	"github.com/spec-kit/ticket-resolution/internal/planning"
	"github.com/spec-kit/ticket-resolution/internal/repository"
	"github.com/spec-kit/ticket-resolution/internal/retrieval"
	"github.com/spec-kit/ticket-resolution/internal/service"
	"github.com/spec-kit/ticket-resolution/internal/worker"
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

	store, err := corpus.Load(cfg.Corpus.DataDir, logger)
	if err != nil {
		logger.Fatal("failed to load corpus", zap.Error(err))
	}

	var (
		pg         *persistence.Postgres
		rdb        *persistence.Redis
		ticketRepo repository.TicketRepository
	)
	if cfg.Postgres.DSN != "" {
		pg, err = persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}

		rdb = persistence.NewRedis(cfg.Redis, logger)
		defer rdb.Close()

		ticketRepo = repository.NewCachedTicketRepository(
			repository.NewTicketRepository(pg.PoolHandle()),
			rdb.Client,
			cfg.Redis.CacheTTL,
			logger,
		)
	} else {
		logger.Warn("POSTGRES_DSN not set; tickets are kept in memory")
		ticketRepo = repository.NewMemoryTicketRepository()
	}

	drafter, err := assist.New(cfg.Assistant, logger)
	if err != nil {
		logger.Fatal("failed to init drafter", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notify)
	worker.StartNotificationWorker(notifications)

	resolutionService := service.NewResolutionService(service.ResolutionDependencies{
		TicketRepo: ticketRepo,
		Engine:     retrieval.NewEngine(store, logger),
		Builder:    planning.NewBuilder(),
		Closer:     closing.NewCloser(store, logger),
		Drafter:    drafter,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb, metrics),
		Tickets: handlers.NewTicketsHandler(resolutionService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
