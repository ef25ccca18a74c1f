package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionType enumerates all ledger transaction types.
type TransactionType string

const (
	TxPurchase     TransactionType = "purchase"
	TxRefund       TransactionType = "refund"
	TxCreditAward  TransactionType = "credit_award"
	TxCreditSpend  TransactionType = "credit_spend"
	TxAdjustment   TransactionType = "adjustment"
)

// TransactionStatus tracks the monetary event lifecycle.
type TransactionStatus string

const (
	TxStatusInitiated         TransactionStatus = "initiated"
	TxStatusProcessing        TransactionStatus = "processing"
	TxStatusCompleted         TransactionStatus = "completed"
	TxStatusFailed            TransactionStatus = "failed"
	TxStatusRefunded          TransactionStatus = "refunded"
	TxStatusPartiallyRefunded TransactionStatus = "partially_refunded"
	TxStatusDisputed          TransactionStatus = "disputed"
	TxStatusUnderReview       TransactionStatus = "under_review"
)

// statusRank orders statuses along the allowed path. A transition is legal
// only if it moves strictly forward; equal or backward moves are no-ops.
var statusRank = map[TransactionStatus]int{
	TxStatusInitiated:         0,
	TxStatusProcessing:        1,
	TxStatusUnderReview:       1,
	TxStatusCompleted:         2,
	TxStatusFailed:            2,
	TxStatusDisputed:          3,
	TxStatusPartiallyRefunded: 3,
	TxStatusRefunded:          4,
}

// CanTransition reports whether a status change moves forward along the
// monotonic path INITIATED → PROCESSING → {COMPLETED|FAILED} → refund states.
func CanTransition(from, to TransactionStatus) bool {
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	if from == TxStatusFailed {
		// A failed transaction is terminal.
		return false
	}
	return toRank > fromRank
}

// FeeBreakdown holds the fee components computed once at creation.
// Invariant: NetAmount = amount - PlatformFee - GatewayFee - Tax.
type FeeBreakdown struct {
	PlatformFee int64 `json:"platform_fee"`
	GatewayFee  int64 `json:"gateway_fee"`
	Tax         int64 `json:"tax"`
	NetAmount   int64 `json:"net_amount"`
}

// Transaction represents a transactions table row: one monetary event.
// TransactionID is the caller- or gateway-supplied idempotency key.
type Transaction struct {
	ID                  uuid.UUID         `json:"id"`
	TransactionID       string            `json:"transaction_id"`
	UserID              *uuid.UUID        `json:"user_id,omitempty"`
	Type                TransactionType   `json:"type"`
	Status              TransactionStatus `json:"status"`
	Amount              int64             `json:"amount"`
	FeeBreakdown
	RiskScore           int             `json:"risk_score"`
	ParentTransactionID *uuid.UUID      `json:"parent_transaction_id,omitempty"`
	Metadata            json.RawMessage `json:"metadata"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Refundable reports whether a refund may be opened against this transaction.
func (t *Transaction) Refundable() bool {
	return t.Type == TxPurchase &&
		(t.Status == TxStatusCompleted || t.Status == TxStatusPartiallyRefunded)
}

// TransactionEvent is an immutable transaction_events row. Events are never
// updated or deleted; replaying them must reconstruct the current status.
type TransactionEvent struct {
	ID            int64             `json:"id"`
	TransactionID string            `json:"transaction_id"`
	EventType     string            `json:"event_type"`
	Status        TransactionStatus `json:"status"`
	Actor         string            `json:"actor"`
	Data          json.RawMessage   `json:"data,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Event actors recorded on transaction_events rows.
const (
	ActorClient  = "client"
	ActorGateway = "gateway"
	ActorSystem  = "system"
	ActorAdmin   = "admin"
)
