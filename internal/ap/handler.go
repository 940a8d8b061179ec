package ap

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

// Handler exposes accounts payable over HTTP.
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

// MountRoutes registers payable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/bills", func(r chi.Router) {
		r.Get("/", h.listBills)
		r.Post("/", h.createBill)
		r.Get("/{id}", h.getBill)
		r.Post("/{id}/post", h.postBill)
	})
	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.listPayments)
		r.Post("/", h.createPayment)
	})
	r.Get("/aging", h.aging)
	r.Get("/statement", h.statement)
}

type createBillRequest struct {
	VendorID  int64                 `json:"vendor_id" validate:"required"`
	VendorRef string                `json:"vendor_ref"`
	BillDate  string                `json:"bill_date" validate:"required"`
	DueDate   string                `json:"due_date"`
	Lines     []CreateBillLineInput `json:"lines" validate:"min=1"`
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var req createBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	billDate, err := parseDate(req.BillDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateBillInput{
		SchoolID:  scope.SchoolID,
		ActorID:   scope.ActorID,
		VendorID:  req.VendorID,
		VendorRef: req.VendorRef,
		BillDate:  billDate,
		Lines:     req.Lines,
	}
	if req.DueDate != "" {
		if input.DueDate, err = parseDate(req.DueDate); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	bill, err := h.service.CreateBill(r.Context(), input)
	if err != nil {
		h.logger.Warn("bill create failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	filter := BillFilter{Status: BillStatus(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("vendor_id"); v != "" {
		filter.VendorID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	bills, err := h.service.ListBills(r.Context(), scope.SchoolID, filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bills": bills})
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bill, err := h.service.GetBill(r.Context(), scope.SchoolID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) postBill(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bill, result, err := h.service.PostBill(r.Context(), scope.SchoolID, scope.ActorID, id)
	if err != nil {
		h.logger.Warn("bill post failed", "bill_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bill": bill, "posting": result})
}

type createPaymentRequest struct {
	VendorID    int64   `json:"vendor_id" validate:"required"`
	BillID      *int64  `json:"bill_id"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	PaymentDate string  `json:"payment_date"`
	Method      string  `json:"method"`
	Reference   string  `json:"reference"`
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var req createPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, result, err := h.service.CreatePayment(r.Context(), CreatePaymentInput{
		SchoolID:    scope.SchoolID,
		ActorID:     scope.ActorID,
		VendorID:    req.VendorID,
		BillID:      req.BillID,
		Amount:      req.Amount,
		PaymentDate: paymentDate,
		Method:      req.Method,
		Reference:   req.Reference,
	})
	if err != nil {
		h.logger.Warn("payment create failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"payment": payment, "posting": result})
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var vendorID int64
	if v := r.URL.Query().Get("vendor_id"); v != "" {
		vendorID, _ = strconv.ParseInt(v, 10, 64)
	}
	payments, err := h.service.ListPayments(r.Context(), scope.SchoolID, vendorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
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
	vendorID, err := strconv.ParseInt(r.URL.Query().Get("vendor_id"), 10, 64)
	if err != nil || vendorID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "vendor_id is required")
		return
	}
	from, to := time.Time{}, time.Now()
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = parseDate(v); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = parseDate(v); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	rows, err := h.service.Statement(r.Context(), scope.SchoolID, vendorID, from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("ap: invalid %s: %w", name, httpx.ErrValidation)
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("ap: date must be YYYY-MM-DD: %w", httpx.ErrValidation)
	}
	return d, nil
}
