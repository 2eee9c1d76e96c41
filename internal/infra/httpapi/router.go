package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Use(h.RequireAdminToken)

		r.Get("/rules", h.ListRules)
		r.Post("/rules/{id}/enable", h.EnableRule)
		r.Post("/rules/{id}/disable", h.DisableRule)
		r.Put("/rules/{id}/lead-days", h.SetLeadDays)

		r.Get("/scheduler", h.SchedulerStatus)
		r.Put("/scheduler/settings", h.UpdateSettings)
		r.Post("/scheduler/pause", h.Pause)
		r.Post("/scheduler/resume", h.Resume)

		r.Get("/runs", h.ListRuns)
		r.Post("/runs", h.RunNow)
		r.Get("/history", h.History)
	})

	r.With(h.RequireWebhookToken).Post("/webhooks/payments", h.PaymentWebhook)

	r.Get("/healthz", h.Liveness)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
