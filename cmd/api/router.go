package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/linkedin-outreach/internal/app"
	"github.com/xavierca1/linkedin-outreach/internal/infra/http/handlers"
	"github.com/xavierca1/linkedin-outreach/internal/infra/http/middleware"
	"github.com/xavierca1/linkedin-outreach/internal/infra/queue"
)

func newRouter(a *app.App) http.Handler {
	cfg := a.Config
	logger := a.Logger.Named("http")

	var producer queue.OutcomeProducer
	if cfg.AsyncCallbacks && a.RabbitMQ != nil {
		producer = queue.NewProducer(a.RabbitMQ.Ch)
	}
	var conn *amqp.Connection
	if a.RabbitMQ != nil {
		conn = a.RabbitMQ.Conn
	}

	callbackHandler := handlers.NewCallbackHandler(a.Reconcile, producer, logger)
	campaignHandler := handlers.NewCampaignHandler(a.Schedule, a.Dispatch, a.Operator, logger)
	sessionHandler := handlers.NewSessionHandler(a.Promote, a.Query, logger)
	prospectHandler := handlers.NewProspectHandler(a.Query, logger)
	healthHandler := handlers.NewHealthHandler(a.DB, conn, cfg.EngineWebhookURL != "")

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.With(middleware.BearerToken(cfg.CallbackToken)).Post("/callbacks/outcome", callbackHandler.Handle)

	r.Route("/workspaces/{workspaceId}", func(r chi.Router) {
		r.Post("/sessions/{sessionId}/promote", sessionHandler.Promote)
		r.Get("/sessions", sessionHandler.List)
		r.Get("/prospects", prospectHandler.List)

		r.Route("/campaigns/{campaignId}", func(r chi.Router) {
			r.Post("/schedule", campaignHandler.Schedule)
			r.Post("/dispatch", campaignHandler.Dispatch)
			r.Post("/reset-queued", campaignHandler.ResetQueued)
			r.Post("/fail-queued", campaignHandler.FailQueued)
			r.Post("/reset-failed", campaignHandler.ResetFailed)
		})
	})

	r.Get("/prospects/{prospectId}/history", prospectHandler.History)

	return r
}
