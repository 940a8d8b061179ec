package inventory

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

// Handler exposes stock operations over HTTP.
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

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/moves", func(r chi.Router) {
		r.Get("/", h.listMoves)
		r.Post("/", h.recordMove)
	})
	r.Post("/transfers", h.transfer)
	r.Get("/stock", h.stockLevels)
	r.Get("/stock-card", h.stockCard)
	r.Get("/valuation", h.valuation)
}

type recordMoveRequest struct {
	ItemID      int64   `json:"item_id"`
	WarehouseID int64   `json:"warehouse_id"`
	MoveType    string  `json:"move_type"`
	Quantity    float64 `json:"quantity"`
	UnitCost    float64 `json:"unit_cost"`
	Outbound    bool    `json:"outbound"`
	MoveDate    string  `json:"move_date"`
	Reference   string  `json:"reference"`
}

func (h *Handler) recordMove(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var req recordMoveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	moveDate, err := parseDate(req.MoveDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	move, result, err := h.service.RecordMove(r.Context(), RecordMoveInput{
		SchoolID:    scope.SchoolID,
		ActorID:     scope.ActorID,
		ItemID:      req.ItemID,
		WarehouseID: req.WarehouseID,
		MoveType:    MoveType(req.MoveType),
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		Outbound:    req.Outbound,
		MoveDate:    moveDate,
		Reference:   req.Reference,
	})
	if err != nil {
		h.logger.Warn("stock move failed", "item_id", req.ItemID, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"move": move, "posting": result})
}

type transferRequest struct {
	ItemID          int64   `json:"item_id"`
	FromWarehouseID int64   `json:"from_warehouse_id"`
	ToWarehouseID   int64   `json:"to_warehouse_id"`
	Quantity        float64 `json:"quantity"`
	MoveDate        string  `json:"move_date"`
	Reference       string  `json:"reference"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	moveDate, err := parseDate(req.MoveDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	moves, err := h.service.Transfer(r.Context(), TransferInput{
		SchoolID:        scope.SchoolID,
		ActorID:         scope.ActorID,
		ItemID:          req.ItemID,
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		Quantity:        req.Quantity,
		MoveDate:        moveDate,
		Reference:       req.Reference,
	})
	if err != nil {
		h.logger.Warn("stock transfer failed", "item_id", req.ItemID, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"moves": moves})
}

func (h *Handler) listMoves(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	filter := MoveFilter{}
	if v := r.URL.Query().Get("item_id"); v != "" {
		filter.ItemID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("warehouse_id"); v != "" {
		filter.WarehouseID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	moves, err := h.service.ListMoves(r.Context(), scope.SchoolID, filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"moves": moves})
}

func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var warehouseID int64
	if v := r.URL.Query().Get("warehouse_id"); v != "" {
		warehouseID, _ = strconv.ParseInt(v, 10, 64)
	}
	levels, err := h.service.StockLevels(r.Context(), scope.SchoolID, warehouseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stock": levels})
}

func (h *Handler) stockCard(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	itemID, err := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item_id is required")
		return
	}
	warehouseID, err := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	if err != nil || warehouseID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "warehouse_id is required")
		return
	}
	moves, err := h.service.StockCard(r.Context(), scope.SchoolID, itemID, warehouseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"moves": moves})
}

func (h *Handler) valuation(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	total, err := h.service.ValuationTotal(r.Context(), scope.SchoolID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"valuation_total": total})
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("inventory: date must be YYYY-MM-DD: %w", httpx.ErrValidation)
	}
	return d, nil
}
