package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tradelink-backend/api/routes"
	"github.com/angelmondragon/tradelink-backend/internal/accounts"
	"github.com/angelmondragon/tradelink-backend/internal/catalog"
	"github.com/angelmondragon/tradelink-backend/internal/chat"
	"github.com/angelmondragon/tradelink-backend/internal/complaints"
	"github.com/angelmondragon/tradelink-backend/internal/links"
	"github.com/angelmondragon/tradelink-backend/internal/notifications"
	"github.com/angelmondragon/tradelink-backend/internal/orders"
	"github.com/angelmondragon/tradelink-backend/pkg/auth/session"
	"github.com/angelmondragon/tradelink-backend/pkg/config"
	"github.com/angelmondragon/tradelink-backend/pkg/db"
	"github.com/angelmondragon/tradelink-backend/pkg/eventbus"
	"github.com/angelmondragon/tradelink-backend/pkg/instance"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	"github.com/angelmondragon/tradelink-backend/pkg/metrics"
	"github.com/angelmondragon/tradelink-backend/pkg/migrate"
	"github.com/angelmondragon/tradelink-backend/pkg/outbox"
	"github.com/angelmondragon/tradelink-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	bus := eventbus.New(logg, eventbus.WithMetrics(metrics.NewEventBusMetrics(prometheus.DefaultRegisterer)))

	// Inline mode delivers events after commit in this process; otherwise the
	// outbox row is written in the same transaction and the worker consumes it.
	var emitter eventbus.Emitter
	var txRunner eventbus.TxRunner = dbClient
	if cfg.FeatureFlags.InlineEvents {
		inline := eventbus.NewInlineEmitter(bus)
		emitter = inline
		txRunner = inline.Transactional(dbClient)
	} else {
		emitter = outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	}

	directory, err := accounts.NewDirectory(accounts.NewRepository(dbClient.DB()))
	exitOnErr(logg, "failed to create account directory", err)

	catalogReader, err := catalog.NewReader(dbClient.DB(), cfg.Catalog.Timeout)
	exitOnErr(logg, "failed to create catalog reader", err)

	linksService, err := links.NewService(links.NewRepository(dbClient.DB()), txRunner, emitter, directory, logg)
	exitOnErr(logg, "failed to create links service", err)

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(ordersRepo, txRunner, emitter, catalogReader, linksService, logg)
	exitOnErr(logg, "failed to create orders service", err)

	actionLock, err := complaints.NewActionLock(redisClient, cfg.Eventing.ActionLockTTL)
	exitOnErr(logg, "failed to create complaint action lock", err)

	complaintsService, err := complaints.NewService(complaints.NewRepository(dbClient.DB()), txRunner, emitter, ordersRepo, directory, actionLock, logg)
	exitOnErr(logg, "failed to create complaints service", err)

	chatRepo := chat.NewRepository(dbClient.DB())
	chatService, err := chat.NewService(chatRepo, txRunner, emitter, ordersRepo, logg)
	exitOnErr(logg, "failed to create chat service", err)

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	notificationsService, err := notifications.NewService(notificationsRepo)
	exitOnErr(logg, "failed to create notifications service", err)

	if cfg.FeatureFlags.InlineEvents {
		dispatcher, err := notifications.NewDispatcher(notificationsRepo, chatService, directory, logg)
		exitOnErr(logg, "failed to create notification dispatcher", err)
		dispatcher.Subscribe(bus)

		assigner, err := chat.NewAssigner(chatRepo, directory, logg)
		exitOnErr(logg, "failed to create chat assigner", err)
		assigner.Subscribe(bus)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"instance":     instance.ID(),
		"inlineEvents": cfg.FeatureFlags.InlineEvents,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			linksService,
			ordersService,
			complaintsService,
			chatService,
			notificationsService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
