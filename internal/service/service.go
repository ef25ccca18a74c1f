package service

import (
	"context"

	"github.com/avatarly/payments/internal/provider"
)

// Gateway is the outbound payment gateway surface consumed by services.
// Satisfied by provider.RazorpayProvider; narrowed here so services can be
// tested against a stub.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*provider.GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*provider.GatewayPayment, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(rawBody []byte, signature string) bool
	KeyID() string
}
