package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types published through the outbox.
type EventType string

const (
	EventPaymentCompleted       EventType = "payments.payment.completed"
	EventPaymentFailed          EventType = "payments.payment.failed"
	EventCreditsAwarded         EventType = "payments.credits.awarded"
	EventCreditsDeducted        EventType = "payments.credits.deducted"
	EventRefundCreated          EventType = "payments.refund.created"
	EventReconciliationRequired EventType = "payments.reconciliation.required"
	EventAuditWriteFailed       EventType = "payments.audit.write_failed"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregatePayment     AggregateType = "payment"
	AggregateLedger      AggregateType = "ledger"
	AggregateTransaction AggregateType = "transaction"
)

// OutboxDraft is the payload written to the event_outbox table. The outbox
// consumer publishes drafts for the notification and alerting collaborators.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}
