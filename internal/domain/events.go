package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewPaymentCompletedEvent creates the event emitted once per completed
// payment, consumed by the notification service for purchase emails.
func NewPaymentCompletedEvent(p *Payment) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"payment_id":         p.ID.String(),
		"user_id":            paymentUserID(p),
		"gateway_order_id":   p.GatewayOrderID,
		"gateway_payment_id": p.GatewayPaymentID,
		"amount":             p.Amount,
		"currency":           p.Currency,
		"credits":            p.Credits,
	})
	return newDraft(AggregatePayment, paymentAggregateID(p), EventPaymentCompleted, payload)
}

// NewPaymentFailedEvent creates the event for a failed capture. Failure stubs
// for unknown orders have no user; the event partitions on the order id then.
func NewPaymentFailedEvent(p *Payment, reason string) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"payment_id":       p.ID.String(),
		"user_id":          paymentUserID(p),
		"gateway_order_id": p.GatewayOrderID,
		"reason":           reason,
	})
	return newDraft(AggregatePayment, paymentAggregateID(p), EventPaymentFailed, payload)
}

func paymentUserID(p *Payment) string {
	if p.UserID == nil {
		return ""
	}
	return p.UserID.String()
}

func paymentAggregateID(p *Payment) string {
	if p.UserID == nil {
		return p.GatewayOrderID
	}
	return p.UserID.String()
}

// NewCreditsChangedEvent creates the ledger event for an award or deduction.
func NewCreditsChangedEvent(tx *Transaction, balanceAfter int64) OutboxDraft {
	evtType := EventCreditsAwarded
	if tx.Type == TxCreditSpend || tx.Type == TxRefund {
		evtType = EventCreditsDeducted
	}
	userID := ""
	if tx.UserID != nil {
		userID = tx.UserID.String()
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"transaction_id": tx.TransactionID,
		"user_id":        userID,
		"type":           tx.Type,
		"amount":         tx.Amount,
		"balance_after":  balanceAfter,
	})
	return newDraft(AggregateLedger, userID, evtType, payload)
}

// NewRefundCreatedEvent creates the event for a new refund transaction.
func NewRefundCreatedEvent(refund *Transaction, parentTransactionID string) OutboxDraft {
	userID := ""
	if refund.UserID != nil {
		userID = refund.UserID.String()
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"transaction_id":        refund.TransactionID,
		"parent_transaction_id": parentTransactionID,
		"user_id":               userID,
		"amount":                refund.Amount,
	})
	return newDraft(AggregateTransaction, userID, EventRefundCreated, payload)
}

// NewReconciliationEvent flags a credit shortfall for manual reconciliation
// (refund deduction clamped at zero).
func NewReconciliationEvent(userID uuid.UUID, transactionID string, shortfall int64) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"user_id":        userID.String(),
		"transaction_id": transactionID,
		"shortfall":      shortfall,
	})
	return newDraft(AggregateLedger, userID.String(), EventReconciliationRequired, payload)
}

func newDraft(agg AggregateType, aggID string, evtType EventType, payload json.RawMessage) OutboxDraft {
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: agg,
		AggregateID:   aggID,
		EventType:     evtType,
		PartitionKey:  aggID,
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}
