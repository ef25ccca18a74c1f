package handler

import (
	"log/slog"
	"net/http"

	"github.com/avatarly/payments/internal/auth"
	"github.com/avatarly/payments/internal/service"
)

// CreditHandler exposes the balance, spend and history endpoints.
type CreditHandler struct {
	credits *service.CreditService
	logger  *slog.Logger
}

func NewCreditHandler(credits *service.CreditService, logger *slog.Logger) *CreditHandler {
	return &CreditHandler{credits: credits, logger: logger}
}

// Balance handles GET /credits/balance.
func (h *CreditHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		RespondJSON(w, http.StatusUnauthorized, map[string]string{"code": "UNAUTHORIZED", "message": "missing user"})
		return
	}
	balance, err := h.credits.Balance(r.Context(), userID)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]int64{"credits": balance})
}

// Spend handles POST /credits/spend.
func (h *CreditHandler) Spend(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		RespondJSON(w, http.StatusUnauthorized, map[string]string{"code": "UNAUTHORIZED", "message": "missing user"})
		return
	}
	var input service.SpendInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, h.logger, err)
		return
	}
	result, err := h.credits.Spend(r.Context(), userID, input)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// History handles GET /payments/history.
func (h *CreditHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		RespondJSON(w, http.StatusUnauthorized, map[string]string{"code": "UNAUTHORIZED", "message": "missing user"})
		return
	}
	page, limit := pageParams(r)
	history, err := h.credits.History(r.Context(), userID, page, limit)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, history)
}
