package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/avatarly/payments/internal/auth"
	"github.com/avatarly/payments/internal/domain"
	"github.com/avatarly/payments/internal/service"
	"github.com/avatarly/payments/internal/txlog"
)

// PaymentHandler exposes order creation, verification, history, refunds and
// the per-transaction audit trail.
type PaymentHandler struct {
	orders       *service.OrderService
	verification *service.VerificationService
	refunds      *service.RefundService
	audit        *txlog.Recorder
	logger       *slog.Logger
}

func NewPaymentHandler(orders *service.OrderService, verification *service.VerificationService, refunds *service.RefundService, audit *txlog.Recorder, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{orders: orders, verification: verification, refunds: refunds, audit: audit, logger: logger}
}

// CreateOrder handles POST /payments/create-order.
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		RespondJSON(w, http.StatusUnauthorized, map[string]string{"code": "UNAUTHORIZED", "message": "missing user"})
		return
	}

	var input service.CreateOrderInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, h.logger, err)
		return
	}
	if input.Country == "" {
		input.Country = r.Header.Get("CF-IPCountry")
	}

	result, err := h.orders.CreateOrder(r.Context(), userID, input)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	RespondJSON(w, http.StatusCreated, result)
}

// Verify handles POST /payments/verify.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var input service.VerifyInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, h.logger, err)
		return
	}

	result, err := h.verification.Verify(r.Context(), input)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"already_processed": result.AlreadyProcessed,
		"credits_awarded":   result.CreditsAwarded,
	})
}

// ListOrders handles GET /payments/orders.
func (h *PaymentHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		RespondJSON(w, http.StatusUnauthorized, map[string]string{"code": "UNAUTHORIZED", "message": "missing user"})
		return
	}
	page, limit := pageParams(r)
	payments, err := h.orders.ListPayments(r.Context(), userID, page, limit)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"payments": payments, "page": page, "limit": limit})
}

// Packages handles GET /payments/packages.
func (h *PaymentHandler) Packages(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]interface{}{"packages": h.orders.Packages()})
}

// Refund handles POST /payments/refund (admin realm only).
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var input service.RefundInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, h.logger, err)
		return
	}

	result, err := h.refunds.CreateRefund(r.Context(), input)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	RespondJSON(w, http.StatusCreated, result)
}

// Events handles GET /payments/transactions/{transactionID}/events (admin
// realm only). The audit trail is returned newest first.
func (h *PaymentHandler) Events(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")
	if transactionID == "" {
		RespondError(w, h.logger, domain.ErrValidation("transaction id is required"))
		return
	}

	events, err := h.audit.Events(r.Context(), transactionID)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []domain.TransactionEvent{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"transaction_id": transactionID,
		"events":         events,
	})
}

func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
