package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/markwise/markwise-server/internal/api"
	"github.com/markwise/markwise-server/internal/config"
	"github.com/markwise/markwise-server/internal/store"
)

// NewRouter assembles the HTTP surface: the grading API, operator
// endpoints, health and metrics.
func NewRouter(handler *api.Handler, cfg *config.Service, st store.Store, nc *nats.Conn) http.Handler {
	r := chi.NewRouter()

	r.Use(api.RequestID)
	r.Use(api.RequestLogger)
	r.Use(api.LimitBody)
	r.Use(api.ValidateContentType)

	r.Route("/v1", func(r chi.Router) {
		r.Use(api.Identity)
		r.Post("/gradings", handler.Submit)
		r.Get("/gradings", handler.ListJobs)
		r.Get("/gradings/{id}", handler.GetJob)
		r.Get("/gradings/{id}/events", handler.StreamJobEvents)
		r.Get("/balance", handler.Balance)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(api.AdminOnly(cfg.AdminToken))
		r.Get("/failures", handler.ListFailures)
		r.Post("/users/{id}/provision", handler.ProvisionUser)
	})

	r.Get("/healthz", healthHandler(st, nc))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	NATS     string `json:"nats"`
}

func healthHandler(st store.Store, nc *nats.Conn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Database: "connected", NATS: "connected"}
		status := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "disconnected"
			status = http.StatusServiceUnavailable
		}
		if nc.Status() != nats.CONNECTED {
			resp.Status = "degraded"
			resp.NATS = nc.Status().String()
			status = http.StatusServiceUnavailable
		}

		api.WriteJSON(w, status, resp)
	}
}
