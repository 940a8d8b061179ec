package reports

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// Handler exposes financial reports over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/trial-balance.csv", h.trialBalanceCSV)
	r.Get("/profit-loss", h.profitAndLoss)
	r.Get("/balance-sheet", h.balanceSheet)
	r.Post("/invalidate", h.invalidate)
}

// invalidate bumps the cache version so the next report reads fresh balances.
// Callers use it after bulk corrections instead of waiting out the TTL.
func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Invalidate(r.Context()); err != nil {
		h.logger.Error("report cache invalidation failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "invalidated"})
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.TrialBalance(r.Context(), scope.SchoolID, filter)
	if err != nil {
		h.logger.Error("trial balance failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) trialBalanceCSV(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	raw, err := h.service.TrialBalanceCSV(r.Context(), scope.SchoolID, filter)
	if err != nil {
		h.logger.Error("trial balance export failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="trial-balance.csv"`)
	_, _ = w.Write(raw)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.ProfitAndLoss(r.Context(), scope.SchoolID, filter)
	if err != nil {
		h.logger.Error("profit and loss failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.BalanceSheet(r.Context(), scope.SchoolID, filter)
	if err != nil {
		h.logger.Error("balance sheet failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func parseFilter(r *http.Request) (Filter, error) {
	var filter Filter
	if v := r.URL.Query().Get("period_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Filter{}, fmt.Errorf("reports: invalid period_id: %w", httpx.ErrValidation)
		}
		filter.PeriodID = id
	}
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return Filter{}, fmt.Errorf("reports: date must be YYYY-MM-DD: %w", httpx.ErrValidation)
		}
		filter.DateFrom = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return Filter{}, fmt.Errorf("reports: date must be YYYY-MM-DD: %w", httpx.ErrValidation)
		}
		filter.DateTo = d
	}
	return filter, nil
}
