package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldops/fieldops/internal/console"
	"github.com/fieldops/fieldops/internal/observability"
	"github.com/fieldops/fieldops/internal/platform/httpx"
	"github.com/fieldops/fieldops/internal/shared"
	"github.com/fieldops/fieldops/internal/worker"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Sessions      *shared.SessionManager
	Metrics       *observability.Metrics
	Console       *console.Handler
	WorkerHandler *worker.Handler
}

// NewRouter constructs the console chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "Cannot "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "Cannot "+r.Method+" "+r.URL.Path)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	if params.Console != nil {
		r.Route("/console", params.Console.MountRoutes)
	}
	if params.WorkerHandler != nil {
		r.Route("/worker", params.WorkerHandler.MountRoutes)
	}
	return r
}
