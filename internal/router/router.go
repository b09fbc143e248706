package router

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/introlink/messaging/internal/application"
	"github.com/introlink/messaging/internal/bus"
	"github.com/introlink/messaging/internal/config"
	"github.com/introlink/messaging/internal/handlers"
	"github.com/introlink/messaging/internal/middleware"
	"github.com/introlink/messaging/internal/observability"
	"github.com/introlink/messaging/internal/storage"
)

// New assembles the HTTP surface: authenticated REST routes, the websocket
// endpoint, and the operational endpoints (health, metrics).
func New(
	cfg *config.Config,
	app *application.Service,
	wsHandler *bus.Handler,
	store storage.Store,
	db *sql.DB,
) http.Handler {

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery())
	r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
	if cfg.MetricsEnabled {
		r.Use(observability.MetricsMiddleware(cfg.ServiceName))
	}

	r.Get("/health/live", observability.HealthLiveHandler)
	r.Get("/health/ready", observability.HealthReadyHandler(db))
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	requestHandler := handlers.NewRequestHandler(app)
	conversationHandler := handlers.NewConversationHandler(app)
	messageHandler := handlers.NewMessageHandler(app, store)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.JWT(cfg.JWTSecret))

		api.Route("/requests", func(req chi.Router) {
			req.Post("/", requestHandler.Create)
			req.Get("/", requestHandler.List)
			req.Post("/{id}/accept", requestHandler.Accept)
			req.Post("/{id}/reject", requestHandler.Reject)
			req.Get("/check/{userId}", requestHandler.CheckStatus)
		})

		api.Route("/conversations", func(conv chi.Router) {
			conv.Post("/", conversationHandler.Open)
			conv.Get("/", conversationHandler.List)
			conv.Get("/unread", conversationHandler.Unread)
			conv.Get("/{id}/messages", conversationHandler.Messages)
			conv.Post("/{id}/read", conversationHandler.MarkRead)
		})

		api.Route("/messages", func(msg chi.Router) {
			msg.Post("/", messageHandler.Post)
			msg.Delete("/{id}", messageHandler.Delete)
		})
	})

	// websocket auth rides the query string, not the Authorization header.
	r.Get("/ws", wsHandler.ServeHTTP)

	if cfg.TracingEnabled {
		return otelhttp.NewHandler(r, cfg.ServiceName)
	}
	return r
}
