package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/classbridge-erp/classbridge-erp/internal/ap"
	"github.com/classbridge-erp/classbridge-erp/internal/ar"
	"github.com/classbridge-erp/classbridge-erp/internal/assets"
	"github.com/classbridge-erp/classbridge-erp/internal/audit"
	"github.com/classbridge-erp/classbridge-erp/internal/inventory"
	"github.com/classbridge-erp/classbridge-erp/internal/ledger"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata"
	"github.com/classbridge-erp/classbridge-erp/internal/observability"
	"github.com/classbridge-erp/classbridge-erp/internal/payroll"
	"github.com/classbridge-erp/classbridge-erp/internal/posting"
	"github.com/classbridge-erp/classbridge-erp/internal/recon"
	"github.com/classbridge-erp/classbridge-erp/internal/reports"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	MasterDataHandler *masterdata.Handler
	LedgerHandler     *ledger.Handler
	PostingHandler    *posting.Handler
	ARHandler         *ar.Handler
	APHandler         *ap.Handler
	InventoryHandler  *inventory.Handler
	AssetsHandler     *assets.Handler
	PayrollHandler    *payroll.Handler
	ReportsHandler    *reports.Handler
	ReconHandler      *recon.Handler
	AuditHandler      *audit.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi router with the full API surface.
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
		r.Use(ScopeMiddleware(params.Logger))

		if params.MasterDataHandler != nil {
			params.MasterDataHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.PostingHandler != nil {
			r.Route("/posting", params.PostingHandler.MountRoutes)
		}
		if params.ARHandler != nil {
			r.Route("/ar", params.ARHandler.MountRoutes)
		}
		if params.APHandler != nil {
			r.Route("/ap", params.APHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.AssetsHandler != nil {
			r.Route("/assets", params.AssetsHandler.MountRoutes)
		}
		if params.PayrollHandler != nil {
			r.Route("/payroll", params.PayrollHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.ReconHandler != nil {
			r.Route("/recon", params.ReconHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
	})

	return r
}
