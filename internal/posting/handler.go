package posting

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// Handler exposes posting rule configuration over HTTP. Postings themselves
// happen through the sub-ledger endpoints, never directly.
type Handler struct {
	logger *slog.Logger
	engine *Engine
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, engine: engine}
}

// MountRoutes registers posting rule routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/rules", h.listRules)
	r.Put("/rules", h.configureRule)
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	rules, err := h.engine.Rules(r.Context(), scope.SchoolID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rules": rules})
}

type configureRuleRequest struct {
	Module          string `json:"module" validate:"required"`
	TxnType         string `json:"txn_type" validate:"required"`
	DebitAccountID  int64  `json:"debit_account_id" validate:"gt=0"`
	CreditAccountID int64  `json:"credit_account_id" validate:"gt=0"`
	IsActive        *bool  `json:"is_active"`
}

func (h *Handler) configureRule(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var req configureRuleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	rule, err := h.engine.ConfigureRule(r.Context(), Rule{
		SchoolID:        scope.SchoolID,
		Module:          req.Module,
		TxnType:         req.TxnType,
		DebitAccountID:  req.DebitAccountID,
		CreditAccountID: req.CreditAccountID,
		IsActive:        active,
	})
	if err != nil {
		h.logger.Warn("rule configure failed", "module", req.Module, "txn_type", req.TxnType, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rule)
}
