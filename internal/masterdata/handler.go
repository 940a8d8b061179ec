// Package masterdata exposes the reference data endpoints: chart of
// accounts, parties, fiscal periods, taxes, items, warehouses and cost
// centers. Validation lives in the per-resource packages.
package masterdata

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/costcenters"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/items"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/parties"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/periods"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/taxes"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/warehouses"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// Handler manages master data endpoints.
type Handler struct {
	logger      *slog.Logger
	accounts    *accounts.Service
	parties     *parties.Service
	periods     *periods.Service
	taxes       *taxes.Service
	items       items.Repository
	warehouses  warehouses.Repository
	costCenters costcenters.Repository
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, accountSvc *accounts.Service, partySvc *parties.Service,
	periodSvc *periods.Service, taxSvc *taxes.Service, itemRepo items.Repository,
	warehouseRepo warehouses.Repository, costCenterRepo costcenters.Repository) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		accounts:    accountSvc,
		parties:     partySvc,
		periods:     periodSvc,
		taxes:       taxSvc,
		items:       itemRepo,
		warehouses:  warehouseRepo,
		costCenters: costCenterRepo,
	}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.createAccount)
		r.Get("/{id}", h.getAccount)
		r.Put("/{id}", h.updateAccount)
		r.Post("/{id}/deactivate", h.deactivateAccount)
		r.Post("/{id}/activate", h.activateAccount)
	})
	r.Route("/parties", func(r chi.Router) {
		r.Get("/", h.listParties)
		r.Post("/", h.createParty)
		r.Get("/{id}", h.getParty)
		r.Put("/{id}", h.updateParty)
	})
	r.Route("/periods", func(r chi.Router) {
		r.Get("/", h.listPeriods)
		r.Post("/", h.createPeriod)
		r.Post("/{id}/close", h.closePeriod)
		r.Post("/{id}/reopen", h.reopenPeriod)
	})
	r.Route("/taxes", func(r chi.Router) {
		r.Get("/", h.listTaxes)
		r.Post("/", h.createTax)
		r.Put("/{id}", h.updateTax)
		r.Delete("/{id}", h.deleteTax)
	})
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.listItems)
		r.Post("/", h.createItem)
	})
	r.Route("/warehouses", func(r chi.Router) {
		r.Get("/", h.listWarehouses)
		r.Post("/", h.createWarehouse)
	})
	r.Route("/cost-centers", func(r chi.Router) {
		r.Get("/", h.listCostCenters)
		r.Post("/", h.createCostCenter)
	})
}

// Accounts

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var acc accounts.Account
	if err := httpx.DecodeJSON(r, &acc); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	acc.SchoolID = scope.SchoolID
	created, err := h.accounts.Create(r.Context(), acc)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	list, err := h.accounts.List(r.Context(), scope.SchoolID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": list})
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	acc, err := h.accounts.Get(r.Context(), scope.SchoolID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var acc accounts.Account
	if err := httpx.DecodeJSON(r, &acc); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	acc.ID = id
	acc.SchoolID = scope.SchoolID
	if err := h.accounts.Update(r.Context(), acc); err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.accounts.Get(r.Context(), scope.SchoolID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setAccountActive(w, r, false)
}

func (h *Handler) activateAccount(w http.ResponseWriter, r *http.Request) {
	h.setAccountActive(w, r, true)
}

func (h *Handler) setAccountActive(w http.ResponseWriter, r *http.Request, active bool) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if active {
		err = h.accounts.Activate(r.Context(), scope.SchoolID, id)
	} else {
		err = h.accounts.Deactivate(r.Context(), scope.SchoolID, id)
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Parties

func (h *Handler) createParty(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var p parties.Party
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	p.SchoolID = scope.SchoolID
	created, err := h.parties.Create(r.Context(), p)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listParties(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	kind := parties.PartyKind(r.URL.Query().Get("kind"))
	list, err := h.parties.List(r.Context(), scope.SchoolID, kind)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"parties": list})
}

func (h *Handler) getParty(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.parties.Get(r.Context(), scope.SchoolID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updateParty(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var p parties.Party
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	p.ID = id
	p.SchoolID = scope.SchoolID
	if err := h.parties.Update(r.Context(), p); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// Periods

type createPeriodRequest struct {
	Code      string `json:"code"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var req createPeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.periods.Create(r.Context(), periods.Period{
		SchoolID:  scope.SchoolID,
		Code:      req.Code,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	list, err := h.periods.List(r.Context(), scope.SchoolID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": list})
}

func (h *Handler) closePeriod(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.periods.Close(r.Context(), scope.SchoolID, id, scope.ActorID)
	if err != nil {
		h.logger.Warn("period close failed", "period_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) reopenPeriod(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.periods.Reopen(r.Context(), scope.SchoolID, id, scope.ActorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// Taxes

func (h *Handler) createTax(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var t taxes.Tax
	if err := httpx.DecodeJSON(r, &t); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	t.SchoolID = scope.SchoolID
	created, err := h.taxes.Create(r.Context(), t)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listTaxes(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	list, err := h.taxes.List(r.Context(), scope.SchoolID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"taxes": list})
}

func (h *Handler) updateTax(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var t taxes.Tax
	if err := httpx.DecodeJSON(r, &t); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	t.ID = id
	t.SchoolID = scope.SchoolID
	if err := h.taxes.Update(r.Context(), t); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) deleteTax(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.taxes.Delete(r.Context(), scope.SchoolID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Items

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var it items.Item
	if err := httpx.DecodeJSON(r, &it); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	it.SchoolID = scope.SchoolID
	created, err := h.items.Create(r.Context(), it)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	list, err := h.items.List(r.Context(), scope.SchoolID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": list})
}

// Warehouses

func (h *Handler) createWarehouse(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var wh warehouses.Warehouse
	if err := httpx.DecodeJSON(r, &wh); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	wh.SchoolID = scope.SchoolID
	created, err := h.warehouses.Create(r.Context(), wh)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	list, err := h.warehouses.List(r.Context(), scope.SchoolID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"warehouses": list})
}

// Cost centers

func (h *Handler) createCostCenter(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var cc costcenters.CostCenter
	if err := httpx.DecodeJSON(r, &cc); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	cc.SchoolID = scope.SchoolID
	created, err := h.costCenters.Create(r.Context(), cc)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listCostCenters(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	list, err := h.costCenters.List(r.Context(), scope.SchoolID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cost_centers": list})
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("masterdata: invalid %s: %w", name, httpx.ErrValidation)
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("masterdata: date must be YYYY-MM-DD: %w", httpx.ErrValidation)
	}
	return d, nil
}
