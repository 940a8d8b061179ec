package recon

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// Handler exposes the reconciliation check over HTTP.
type Handler struct {
	logger  *slog.Logger
	checker *Checker
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, checker *Checker) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, checker: checker}
}

// MountRoutes registers reconciliation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/check", h.check)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	result, err := h.checker.Check(r.Context(), scope.SchoolID)
	if err != nil {
		h.logger.Error("reconciliation check failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	if !result.Matched {
		h.logger.Warn("sub-ledger out of balance with control accounts", "school_id", scope.SchoolID)
	}
	httpx.JSON(w, http.StatusOK, result)
}
