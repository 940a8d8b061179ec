package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// Handler exposes payroll over HTTP.
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

// MountRoutes registers payroll routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/structures", func(r chi.Router) {
		r.Get("/", h.listStructures)
		r.Put("/", h.upsertStructure)
	})
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.listRuns)
		r.Post("/", h.createRun)
		r.Get("/{id}", h.getRun)
		r.Post("/{id}/generate", h.generateRun)
		r.Post("/{id}/lock", h.lockRun)
		r.Post("/{id}/post", h.postRun)
	})
}

type upsertStructureRequest struct {
	EmployeeID    int64   `json:"employee_id"`
	Basic         float64 `json:"basic"`
	Allowances    float64 `json:"allowances"`
	Deductions    float64 `json:"deductions"`
	Tax           float64 `json:"tax"`
	EffectiveFrom string  `json:"effective_from"`
}

func (h *Handler) upsertStructure(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var req upsertStructureRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	input := UpsertStructureInput{
		SchoolID:   scope.SchoolID,
		ActorID:    scope.ActorID,
		EmployeeID: req.EmployeeID,
		Basic:      req.Basic,
		Allowances: req.Allowances,
		Deductions: req.Deductions,
		Tax:        req.Tax,
	}
	if req.EffectiveFrom != "" {
		d, err := parseDate(req.EffectiveFrom)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		input.EffectiveFrom = d
	}
	structure, err := h.service.UpsertStructure(r.Context(), input)
	if err != nil {
		h.logger.Warn("salary structure upsert failed", "employee_id", req.EmployeeID, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, structure)
}

func (h *Handler) listStructures(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	list, err := h.service.ListStructures(r.Context(), scope.SchoolID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"structures": list})
}

type createRunRequest struct {
	PeriodLabel string `json:"period_label"`
	RunDate     string `json:"run_date"`
}

func (h *Handler) createRun(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var req createRunRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	runDate, err := parseDate(req.RunDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	run, err := h.service.CreateRun(r.Context(), scope.SchoolID, scope.ActorID, req.PeriodLabel, runDate)
	if err != nil {
		h.logger.Warn("payroll run create failed", "period", req.PeriodLabel, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, run)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	runs, err := h.service.ListRuns(r.Context(), scope.SchoolID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	run, err := h.service.GetRun(r.Context(), scope.SchoolID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func (h *Handler) generateRun(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.GenerateRun)
}

func (h *Handler) lockRun(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.LockRun)
}

func (h *Handler) postRun(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	run, result, err := h.service.PostRun(r.Context(), scope.SchoolID, scope.ActorID, id)
	if err != nil {
		h.logger.Warn("payroll post failed", "run_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"run": run, "posting": result})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, schoolID, actorID, runID int64) (Run, error)) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	run, err := fn(r.Context(), scope.SchoolID, scope.ActorID, id)
	if err != nil {
		h.logger.Warn("payroll transition failed", "run_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("payroll: invalid %s: %w", name, httpx.ErrValidation)
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("payroll: date must be YYYY-MM-DD: %w", httpx.ErrValidation)
	}
	return d, nil
}
