package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewStatusRouter mounts the endpoints of a worker process:
//
//	GET /livez    always ALIVE while the process serves requests
//	GET /healthz  READY when every check passes
//	GET /metrics  Prometheus exposition of gatherer
func NewStatusRouter(log *slog.Logger, gatherer prometheus.Gatherer, checks ...func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/livez", HealthCheckHandler(log))
	r.Get("/healthz", HealthCheckHandler(log, checks...))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
