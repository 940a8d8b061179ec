package audit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// Handler exposes the audit trail over HTTP.
type Handler struct {
	logger *slog.Logger
	repo   Repository
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers audit trail routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	filter := Filter{
		Entity: r.URL.Query().Get("entity"),
		Action: r.URL.Query().Get("action"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			httpx.RespondError(w, fmt.Errorf("audit: invalid limit: %w", httpx.ErrValidation))
			return
		}
		filter.Limit = limit
	}
	entries, err := h.repo.List(r.Context(), scope.SchoolID, filter)
	if err != nil {
		h.logger.Error("audit trail query failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}
