package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tradelink-backend/internal/accounts"
	"github.com/angelmondragon/tradelink-backend/internal/chat"
	"github.com/angelmondragon/tradelink-backend/internal/notifications"
	"github.com/angelmondragon/tradelink-backend/internal/orders"
	"github.com/angelmondragon/tradelink-backend/pkg/config"
	"github.com/angelmondragon/tradelink-backend/pkg/db"
	"github.com/angelmondragon/tradelink-backend/pkg/eventbus"
	"github.com/angelmondragon/tradelink-backend/pkg/instance"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	"github.com/angelmondragon/tradelink-backend/pkg/metrics"
	"github.com/angelmondragon/tradelink-backend/pkg/migrate"
	"github.com/angelmondragon/tradelink-backend/pkg/outbox"
	"github.com/angelmondragon/tradelink-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tradelink-backend/pkg/outbox/registry"
	"github.com/angelmondragon/tradelink-backend/pkg/pubsub"
	"github.com/angelmondragon/tradelink-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = config.ServiceKindWorker

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	bus := eventbus.New(logg, eventbus.WithMetrics(metrics.NewEventBusMetrics(prometheus.DefaultRegisterer)))

	// Follow-up events (chat MessageSent) go back through the outbox.
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	directory, err := accounts.NewDirectory(accounts.NewRepository(dbClient.DB()))
	exitOnErr(logg, "failed to create account directory", err)

	chatRepo := chat.NewRepository(dbClient.DB())
	chatService, err := chat.NewService(chatRepo, dbClient, emitter, orders.NewRepository(dbClient.DB()), logg)
	exitOnErr(logg, "failed to create chat service", err)

	dispatcher, err := notifications.NewDispatcher(notifications.NewRepository(dbClient.DB()), chatService, directory, logg)
	exitOnErr(logg, "failed to create notification dispatcher", err)
	dispatcher.Subscribe(bus)

	assigner, err := chat.NewAssigner(chatRepo, directory, logg)
	exitOnErr(logg, "failed to create chat assigner", err)
	assigner.Subscribe(bus)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	exitOnErr(logg, "failed to build event registry", err)

	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	exitOnErr(logg, "failed to create idempotency manager", err)

	consumer, err := notifications.NewConsumer(pubsubClient.DomainSubscription(), eventRegistry, bus, guard, logg)
	exitOnErr(logg, "failed to create domain event consumer", err)

	service, err := NewService(ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
	})
	exitOnErr(logg, "failed to create worker", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})
	metrics.Serve(ctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer, logg)
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
