package ledger

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

// Handler exposes the journal ledger over HTTP.
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

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/journals", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Post("/{id}/post", h.post)
		r.Post("/{id}/reverse", h.reverse)
	})
}

type createJournalRequest struct {
	EntryDate   string      `json:"entry_date" validate:"required"`
	PeriodID    *int64      `json:"period_id"`
	Description string      `json:"description"`
	Reference   string      `json:"reference"`
	Lines       []LineInput `json:"lines" validate:"min=2"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var req createJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	entryDate, err := parseDate(req.EntryDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Create(r.Context(), CreateJournalInput{
		SchoolID:    scope.SchoolID,
		ActorID:     scope.ActorID,
		EntryDate:   entryDate,
		PeriodID:    req.PeriodID,
		Description: req.Description,
		Reference:   req.Reference,
		Lines:       req.Lines,
	})
	if err != nil {
		h.logger.Warn("journal create failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	filter := ListFilter{Status: JournalStatus(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("period_id"); v != "" {
		filter.PeriodID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("from"); v != "" {
		if d, err := parseDate(v); err == nil {
			filter.DateFrom = d
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if d, err := parseDate(v); err == nil {
			filter.DateTo = d
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	entries, err := h.service.List(r.Context(), scope.SchoolID, filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": entries})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Get(r.Context(), scope.SchoolID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Post(r.Context(), scope.SchoolID, id, scope.ActorID)
	if err != nil {
		h.logger.Warn("journal post failed", "journal_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

type reverseRequest struct {
	Reason       string `json:"reason"`
	ReversalDate string `json:"reversal_date"`
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	input := ReverseJournalInput{
		SchoolID: scope.SchoolID,
		ActorID:  scope.ActorID,
		EntryID:  id,
		Reason:   req.Reason,
	}
	if req.ReversalDate != "" {
		d, err := parseDate(req.ReversalDate)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		input.ReversalDate = &d
	}
	original, reversal, err := h.service.Reverse(r.Context(), input)
	if err != nil {
		h.logger.Warn("journal reverse failed", "journal_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"original": original, "reversal": reversal})
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("ledger: invalid %s: %w", name, httpx.ErrValidation)
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("ledger: date must be YYYY-MM-DD: %w", httpx.ErrValidation)
	}
	return d, nil
}
