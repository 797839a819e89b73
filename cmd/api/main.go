package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-chat/internal/api/http"
	"github.com/spec-kit/support-chat/internal/api/http/handlers"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/blob"
	"github.com/spec-kit/support-chat/internal/bot"
	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/geo"
	"github.com/spec-kit/support-chat/internal/observability"
	"github.com/spec-kit/support-chat/internal/persistence"
	"github.com/spec-kit/support-chat/internal/sched"
	"github.com/spec-kit/support-chat/internal/service"
	"github.com/spec-kit/support-chat/internal/store"
	"github.com/spec-kit/support-chat/internal/worker"
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

	var (
		kv       persistence.KV
		notifier persistence.Notifier
		pg       *persistence.Postgres
		redis    *persistence.Redis
	)
	switch cfg.Store.Backend {
	case "postgres":
		pg, err = persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		kv, notifier = pg, pg
	case "memory":
		kv = persistence.NewMemoryKV()
		notifier = persistence.NewMemoryHub()
	default:
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		kv, notifier = redis, redis
	}

	st, err := store.New(ctx, kv, notifier, logger)
	if err != nil {
		logger.Fatal("failed to init state store", zap.Error(err))
	}
	defer st.Close()

	calendar, err := bot.NewCalendar(cfg.Calendar)
	if err != nil {
		logger.Fatal("failed to load support calendar", zap.Error(err))
	}

	clock := sched.SystemClock{}
	scheduler := sched.TimerScheduler{}
	dispatcher := events.NewInMemoryDispatcher()
	locator := geo.NewClient(cfg.Geo, logger)
	metrics := observability.NewMetrics()

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      st,
		Clock:      clock,
		Calendar:   calendar,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	leadService := service.NewLeadService(service.LeadDependencies{
		Store:       st,
		Clock:       clock,
		Locator:     locator,
		Dispatcher:  dispatcher,
		Logger:      logger,
		AliasDomain: cfg.Chat.AliasDomain,
	})
	deliveryService := service.NewDeliveryService(service.DeliveryDependencies{
		Store:      st,
		Tickets:    ticketService,
		Leads:      leadService,
		Scheduler:  scheduler,
		Clock:      clock,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
		Chat:       cfg.Chat,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Logger:     logger,
		WebhookURL: cfg.Notification.SoundWebhookURL,
	})

	worker.StartNotificationWorker(notificationService)
	worker.StartEnrichmentWorker(dispatcher, leadService)

	var attachmentStorage blob.Storage
	if cfg.Store.Backend == "memory" {
		attachmentStorage = blob.NewMemoryStorage()
	} else {
		attachmentStorage = blob.NewRedisStorage(kv, cfg.Chat.AttachmentInlineLimit, logger)
	}

	agentHash, err := auth.ResolveAgentHash(cfg.Auth.AgentPasswordHash, cfg.Auth.AgentPassword, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Warn("agent login disabled", zap.Error(err))
	}
	cfg.Auth.AgentPasswordHash = agentHash

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AgentTokenTTLMinutes, cfg.Auth.VisitorTokenTTLDays)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Session:        handlers.NewSessionHandler(tokens, leadService, cfg.Auth),
		Chat:           handlers.NewChatHandler(ticketService, leadService, deliveryService, clock),
		Inbox:          handlers.NewInboxHandler(st, ticketService, deliveryService, clock),
		Attachments:    handlers.NewAttachmentsHandler(attachmentStorage),
		AuthMiddleware: authMiddleware,
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
