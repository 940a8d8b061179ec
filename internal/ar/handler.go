package ar

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

// Handler exposes accounts receivable over HTTP.
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

// MountRoutes registers receivable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/", h.createInvoice)
		r.Get("/{id}", h.getInvoice)
		r.Post("/{id}/post", h.postInvoice)
	})
	r.Route("/receipts", func(r chi.Router) {
		r.Get("/", h.listReceipts)
		r.Post("/", h.createReceipt)
	})
	r.Get("/aging", h.aging)
	r.Get("/statement", h.statement)
}

type createInvoiceRequest struct {
	CustomerID  int64                    `json:"customer_id" validate:"required"`
	InvoiceDate string                   `json:"invoice_date" validate:"required"`
	DueDate     string                   `json:"due_date"`
	Lines       []CreateInvoiceLineInput `json:"lines" validate:"min=1"`
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	invoiceDate, err := parseDate(req.InvoiceDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateInvoiceInput{
		SchoolID:    scope.SchoolID,
		ActorID:     scope.ActorID,
		CustomerID:  req.CustomerID,
		InvoiceDate: invoiceDate,
		Lines:       req.Lines,
	}
	if req.DueDate != "" {
		if input.DueDate, err = parseDate(req.DueDate); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	invoice, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		h.logger.Warn("invoice create failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	filter := InvoiceFilter{Status: InvoiceStatus(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("customer_id"); v != "" {
		filter.CustomerID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	invoices, err := h.service.ListInvoices(r.Context(), scope.SchoolID, filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), scope.SchoolID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) postInvoice(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoice, result, err := h.service.PostInvoice(r.Context(), scope.SchoolID, scope.ActorID, id)
	if err != nil {
		h.logger.Warn("invoice post failed", "invoice_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoice": invoice, "posting": result})
}

type createReceiptRequest struct {
	CustomerID  int64   `json:"customer_id" validate:"required"`
	InvoiceID   *int64  `json:"invoice_id"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	ReceiptDate string  `json:"receipt_date"`
	Method      string  `json:"method"`
	Reference   string  `json:"reference"`
}

func (h *Handler) createReceipt(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var req createReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	receiptDate, err := parseDate(req.ReceiptDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	receipt, result, err := h.service.CreateReceipt(r.Context(), CreateReceiptInput{
		SchoolID:    scope.SchoolID,
		ActorID:     scope.ActorID,
		CustomerID:  req.CustomerID,
		InvoiceID:   req.InvoiceID,
		Amount:      req.Amount,
		ReceiptDate: receiptDate,
		Method:      req.Method,
		Reference:   req.Reference,
	})
	if err != nil {
		h.logger.Warn("receipt create failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"receipt": receipt, "posting": result})
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var customerID int64
	if v := r.URL.Query().Get("customer_id"); v != "" {
		customerID, _ = strconv.ParseInt(v, 10, 64)
	}
	receipts, err := h.service.ListReceipts(r.Context(), scope.SchoolID, customerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	buckets, err := h.service.Aging(r.Context(), scope.SchoolID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buckets)
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	customerID, err := strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)
	if err != nil || customerID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "customer_id is required")
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Statement(r.Context(), scope.SchoolID, customerID, from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("ar: invalid %s: %w", name, httpx.ErrValidation)
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("ar: date must be YYYY-MM-DD: %w", httpx.ErrValidation)
	}
	return d, nil
}

func parseRange(r *http.Request) (from, to time.Time, err error) {
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = parseDate(v); err != nil {
			return
		}
	}
	to = time.Now()
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = parseDate(v); err != nil {
			return
		}
	}
	return
}
