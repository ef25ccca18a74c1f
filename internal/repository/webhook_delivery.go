package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avatarly/payments/internal/domain"
)

type webhookDeliveryRepo struct{}

// NewWebhookDeliveryRepository returns a pgx-backed WebhookDeliveryRepository.
func NewWebhookDeliveryRepository() WebhookDeliveryRepository {
	return &webhookDeliveryRepo{}
}

func (r *webhookDeliveryRepo) Insert(ctx context.Context, db DBTX, d *domain.WebhookDelivery) error {
	payload := d.Payload
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO webhook_deliveries
		  (event_type, gateway_payment_id, signature_valid, outcome, error, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.EventType, d.GatewayPaymentID, d.SignatureValid, string(d.Outcome), d.Error, payload)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}
