package httpsvc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
	"github.com/vladislavdragonenkov/orders-ms/internal/service/orders"
)

// Handler обслуживает HTTP API заказов.
type Handler struct {
	svc    orders.Orchestrator
	logger *log.Entry
}

// NewHandler создаёт HTTP handler поверх оркестратора заказов.
func NewHandler(svc orders.Orchestrator, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateOrder обрабатывает POST /v1/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	items := make([]domain.NewOrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.NewOrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.svc.Create(items)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, mapOrderToResponse(order))
}

// ListOrders обрабатывает GET /v1/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	query := orders.ListQuery{}

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_page", "page must be an integer")
			return
		}
		query.Page = page
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		query.Limit = limit
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		query.Status = &status
	}

	page, err := h.svc.List(query)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapPageToResponse(page))
}

// GetOrder обрабатывает GET /v1/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.svc.Get(id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// ChangeStatus обрабатывает PATCH /v1/orders/{id}/status.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	order, err := h.svc.ChangeStatus(id, status)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// CreatePaymentSession обрабатывает POST /v1/orders/{id}/payment-session.
func (h *Handler) CreatePaymentSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.svc.CreatePaymentSession(id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, PaymentSessionResponse{ID: session.ID, URL: session.URL})
}

// writeDomainError переводит доменные ошибки в HTTP-статусы.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrOrderStatusConflict):
		writeError(w, http.StatusConflict, "status_conflict", err.Error())
	case domain.IsBadRequest(err):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case domain.IsUpstream(err):
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
	default:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
