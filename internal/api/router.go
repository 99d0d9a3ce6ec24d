// internal/api/router.go
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autoapply-engine/internal/common/logger"
)

// NewRouter assembles the engine's HTTP surface. Authenticated routes
// sit behind the X-User-ID gate; health and metrics are open.
func NewRouter(h *Handler, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(RequireUserID)
		r.Post("/trigger-job-search", h.TriggerJobSearch)
		r.Get("/subscription/user", h.SubscriptionStatus)
		r.Get("/applications", h.Applications)
	})

	return r
}
