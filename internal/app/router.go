package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/citypark/citypark/internal/auth"
	"github.com/citypark/citypark/internal/observability"
	"github.com/citypark/citypark/internal/parking"
	"github.com/citypark/citypark/jobs"
)

// RouterParams groups dependencies for the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Metrics        *observability.Metrics
	Auth           *auth.Service
	ParkingHandler *parking.Handler
	JobHandler     *jobs.Handler
}

// NewRouter builds the chi.Router with CityPark defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware{Service: params.Auth, Logger: params.Logger}.Authenticate)
		if params.ParkingHandler != nil {
			params.ParkingHandler.MountRoutes(r)
		}
	})

	return r
}
