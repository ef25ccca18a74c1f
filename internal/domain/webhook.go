package domain

import (
	"encoding/json"
	"time"
)

// Webhook event types delivered by the gateway.
const (
	WebhookPaymentAuthorized = "payment.authorized"
	WebhookPaymentCaptured   = "payment.captured"
	WebhookPaymentFailed     = "payment.failed"
	WebhookRefundProcessed   = "refund.processed"
)

// WebhookOutcome classifies how a delivery was handled.
type WebhookOutcome string

const (
	WebhookOutcomeProcessed WebhookOutcome = "processed"
	WebhookOutcomeIgnored   WebhookOutcome = "ignored"
	WebhookOutcomeRejected  WebhookOutcome = "rejected"
	WebhookOutcomeError     WebhookOutcome = "error"
)

// WebhookDelivery is an append-only webhook_deliveries row. Every delivery
// attempt is recorded, whether or not the business transition succeeded, so
// delivery failures are diagnosable separately from business-logic failures.
type WebhookDelivery struct {
	ID               int64           `json:"id"`
	EventType        string          `json:"event_type"`
	GatewayPaymentID *string         `json:"gateway_payment_id,omitempty"`
	SignatureValid   bool            `json:"signature_valid"`
	Outcome          WebhookOutcome  `json:"outcome"`
	Error            *string         `json:"error,omitempty"`
	Payload          json.RawMessage `json:"payload"`
	CreatedAt        time.Time       `json:"created_at"`
}
