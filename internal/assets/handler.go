package assets

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

// Handler exposes fixed asset operations over HTTP.
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

// MountRoutes registers asset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.register)
	r.Post("/", h.capitalize)
	r.Get("/{id}", h.get)
	r.Get("/{id}/schedule", h.schedule)
	r.Post("/{id}/depreciate", h.depreciate)
	r.Post("/{id}/dispose", h.dispose)
}

type capitalizeRequest struct {
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	Category         string  `json:"category"`
	Cost             float64 `json:"cost"`
	ResidualValue    float64 `json:"residual_value"`
	UsefulLifeMonths int     `json:"useful_life_months"`
	AcquiredAt       string  `json:"acquired_at"`
}

func (h *Handler) capitalize(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var req capitalizeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	acquiredAt, err := parseDate(req.AcquiredAt)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asset, result, err := h.service.Capitalize(r.Context(), CapitalizeInput{
		SchoolID:         scope.SchoolID,
		ActorID:          scope.ActorID,
		Code:             req.Code,
		Name:             req.Name,
		Category:         req.Category,
		Cost:             req.Cost,
		ResidualValue:    req.ResidualValue,
		UsefulLifeMonths: req.UsefulLifeMonths,
		AcquiredAt:       acquiredAt,
	})
	if err != nil {
		h.logger.Warn("asset capitalize failed", "code", req.Code, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"asset": asset, "posting": result})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	rows, err := h.service.Register(r.Context(), scope.SchoolID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assets": rows})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asset, err := h.service.Get(r.Context(), scope.SchoolID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, asset)
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Schedule(r.Context(), scope.SchoolID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"schedule": rows})
}

type depreciateRequest struct {
	RunDate string  `json:"run_date"`
	Amount  float64 `json:"amount"`
}

func (h *Handler) depreciate(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req depreciateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	runDate, err := parseDate(req.RunDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	row, result, err := h.service.Depreciate(r.Context(), DepreciateInput{
		SchoolID: scope.SchoolID,
		ActorID:  scope.ActorID,
		AssetID:  id,
		RunDate:  runDate,
		Amount:   req.Amount,
	})
	if err != nil {
		h.logger.Warn("depreciation failed", "asset_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"schedule_row": row, "posting": result})
}

type disposeRequest struct {
	DisposedAt string   `json:"disposed_at"`
	Proceeds   *float64 `json:"proceeds"`
}

func (h *Handler) dispose(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req disposeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	disposedAt, err := parseDate(req.DisposedAt)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asset, result, err := h.service.Dispose(r.Context(), DisposeInput{
		SchoolID:   scope.SchoolID,
		ActorID:    scope.ActorID,
		AssetID:    id,
		DisposedAt: disposedAt,
		Proceeds:   req.Proceeds,
	})
	if err != nil {
		h.logger.Warn("asset dispose failed", "asset_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"asset": asset, "posting": result})
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("assets: invalid %s: %w", name, httpx.ErrValidation)
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("assets: date must be YYYY-MM-DD: %w", httpx.ErrValidation)
	}
	return d, nil
}
