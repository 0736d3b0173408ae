package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pestward/pestward/internal/auth"
	"github.com/pestward/pestward/internal/masterdata"
	"github.com/pestward/pestward/internal/observability"
	"github.com/pestward/pestward/internal/pricing"
	"github.com/pestward/pestward/internal/revenue"
	"github.com/pestward/pestward/internal/sales"
	"github.com/pestward/pestward/internal/visits"
	"github.com/pestward/pestward/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AuthMiddleware    auth.Middleware
	MasterDataHandler *masterdata.Handler
	PricingHandler    *pricing.Handler
	VisitsHandler     *visits.Handler
	SalesHandler      *sales.Handler
	RevenueHandler    *revenue.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Pestward defaults.
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

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(params.AuthMiddleware.Authenticate)

		if params.MasterDataHandler != nil {
			params.MasterDataHandler.MountRoutes(r)
		}
		if params.PricingHandler != nil {
			params.PricingHandler.MountRoutes(r)
		}
		if params.VisitsHandler != nil {
			params.VisitsHandler.MountRoutes(r)
		}
		if params.SalesHandler != nil {
			params.SalesHandler.MountRoutes(r)
		}
		if params.RevenueHandler != nil {
			params.RevenueHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
