package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avatarly/payments/internal/auth"
)

// NewRouter assembles the full HTTP surface. The webhook route sits outside
// the JSON content-type group because the gateway signs the raw body.
func NewRouter(
	pool *pgxpool.Pool,
	jwtManager *auth.Manager,
	payments *PaymentHandler,
	credits *CreditHandler,
	webhooks *WebhookHandler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(RequestID)
	r.Use(RequestLogger(logger))
	r.Use(CORS)

	r.Get("/health", Health(pool))
	r.Get("/payments/packages", payments.Packages)
	r.Post("/payments/webhook", webhooks.Handle)

	r.Group(func(r chi.Router) {
		r.Use(JSONContentType)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(jwtManager))
			r.Post("/payments/create-order", payments.CreateOrder)
			r.Post("/payments/verify", payments.Verify)
			r.Get("/payments/history", credits.History)
			r.Get("/payments/orders", payments.ListOrders)
			r.Get("/credits/balance", credits.Balance)
			r.Post("/credits/spend", credits.Spend)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin(jwtManager))
			r.Post("/payments/refund", payments.Refund)
			r.Get("/payments/transactions/{transactionID}/events", payments.Events)
		})
	})

	return r
}
