package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tradelink-backend/api/controllers"
	chatcontrollers "github.com/angelmondragon/tradelink-backend/api/controllers/chat"
	complaintcontrollers "github.com/angelmondragon/tradelink-backend/api/controllers/complaints"
	linkcontrollers "github.com/angelmondragon/tradelink-backend/api/controllers/links"
	ordercontrollers "github.com/angelmondragon/tradelink-backend/api/controllers/orders"
	"github.com/angelmondragon/tradelink-backend/api/middleware"
	"github.com/angelmondragon/tradelink-backend/internal/links"
	"github.com/angelmondragon/tradelink-backend/internal/notifications"
	"github.com/angelmondragon/tradelink-backend/pkg/auth/session"
	"github.com/angelmondragon/tradelink-backend/pkg/config"
	"github.com/angelmondragon/tradelink-backend/pkg/db"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tradelink-backend/pkg/redis"
)

// Cache is the Redis surface the HTTP layer uses for idempotency, throttling
// and readiness.
type Cache interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cache Cache,
	sessions session.AccessSessionChecker,
	linksService links.Service,
	ordersService ordercontrollers.Service,
	complaintsService complaintcontrollers.Service,
	chatService chatcontrollers.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["postgres"] = dbP
	}
	if cache != nil {
		readiness["redis"] = cache
	}

	mutationPolicy := middleware.NewRateLimitPolicy(
		"mutations",
		cfg.RateLimit.Window,
		cfg.RateLimit.MutationLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.MutationRateLimit(mutationPolicy, cache, logg))
		r.Use(middleware.Idempotency(cache, logg))

		consumerOnly := middleware.RequireConsumer(logg)
		supplierOnly := middleware.RequireSupplier(logg)
		deciders := middleware.RequireSupplier(logg, enums.RoleSupplierAdmin, enums.RoleManager)

		r.Route("/links", func(r chi.Router) {
			r.With(consumerOnly).Post("/", linkcontrollers.Request(linksService, logg))
			r.Get("/", linkcontrollers.List(linksService, logg))
			r.With(deciders).Post("/{requestId}/decision", linkcontrollers.Decide(linksService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(consumerOnly).Post("/", ordercontrollers.PlaceOrder(ordersService, logg))
			r.With(consumerOnly).Post("/checkout", ordercontrollers.Checkout(ordersService, logg))
			r.Get("/", ordercontrollers.List(ordersService, logg))

			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Detail(ordersService, logg))
				r.With(supplierOnly).Patch("/status", ordercontrollers.UpdateStatus(ordersService, logg))
				r.With(consumerOnly).Post("/complaint", complaintcontrollers.File(complaintsService, logg))
				r.With(consumerOnly).Post("/chat", chatcontrollers.OpenForOrder(chatService, logg))
				r.With(supplierOnly).Get("/chat", chatcontrollers.FindForOrder(chatService, logg))
			})
		})

		r.Route("/complaints", func(r chi.Router) {
			r.Get("/", complaintcontrollers.List(complaintsService, logg))
			r.Route("/{complaintId}", func(r chi.Router) {
				r.Get("/", complaintcontrollers.Detail(complaintsService, logg))
				r.With(supplierOnly).Post("/resolve", complaintcontrollers.Resolve(complaintsService, logg))
				r.With(supplierOnly).Post("/escalate", complaintcontrollers.Escalate(complaintsService, logg))
				r.With(supplierOnly).Get("/escalation", complaintcontrollers.Escalation(complaintsService, logg))
				r.With(consumerOnly).Post("/feedback", complaintcontrollers.Feedback(complaintsService, logg))
			})
		})

		r.Route("/chat/sessions", func(r chi.Router) {
			r.Get("/", chatcontrollers.ListSessions(chatService, logg))
			r.Get("/{sessionId}/messages", chatcontrollers.Messages(chatService, logg))
			r.Post("/{sessionId}/messages", chatcontrollers.Send(chatService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
		})
	})

	return r
}
