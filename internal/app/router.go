package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/domus-erp/domus-erp/internal/billing/configver"
	"github.com/domus-erp/domus-erp/internal/billing/ledger"
	"github.com/domus-erp/domus-erp/internal/billing/settlement"
	"github.com/domus-erp/domus-erp/internal/observability"
	"github.com/domus-erp/domus-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SettlementHandler *settlement.Handler
	LedgerHandler     *ledger.Handler
	ConfigHandler     *configver.Handler
	JobsHandler       *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Domus defaults.
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

	r.Route("/api", func(api chi.Router) {
		api.Route("/billing", func(sub chi.Router) {
			params.SettlementHandler.MountRoutes(sub)
		})
		api.Route("/advances", func(sub chi.Router) {
			params.LedgerHandler.MountRoutes(sub)
		})
		api.Route("/config-versions", func(sub chi.Router) {
			params.ConfigHandler.MountRoutes(sub)
		})
		if params.JobsHandler != nil {
			api.Route("/jobs", func(sub chi.Router) {
				params.JobsHandler.MountRoutes(sub)
			})
		}
	})

	return r
}
