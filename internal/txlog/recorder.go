package txlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/avatarly/payments/internal/domain"
	"github.com/avatarly/payments/internal/repository"
)

// Recorder appends immutable audit events to the transaction log. Writes are
// best-effort with respect to the caller: a failed append is logged for
// alerting but never fails the monetary operation it documents.
type Recorder struct {
	db     repository.DBTX
	events repository.EventRepository
	logger *slog.Logger
}

func NewRecorder(db repository.DBTX, events repository.EventRepository, logger *slog.Logger) *Recorder {
	return &Recorder{db: db, events: events, logger: logger}
}

// Record appends one event outside the caller's transaction. data may be nil.
func (r *Recorder) Record(ctx context.Context, transactionID, eventType string, status domain.TransactionStatus, actor string, data interface{}) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			r.logger.Error("transaction log event payload not serializable",
				"transaction_id", transactionID,
				"event_type", eventType,
				"error", err)
		} else {
			raw = encoded
		}
	}

	event := &domain.TransactionEvent{
		TransactionID: transactionID,
		EventType:     eventType,
		Status:        status,
		Actor:         actor,
		Data:          raw,
		CreatedAt:     time.Now().UTC(),
	}

	if err := r.events.Insert(ctx, r.db, event); err != nil {
		// Audit gaps need operator attention but must not roll back money
		// movement that already happened.
		r.logger.Error("transaction log write failed",
			"transaction_id", transactionID,
			"event_type", eventType,
			"status", status,
			"actor", actor,
			"error", err)
	}
}

// RecordTx appends one event inside the caller's transaction so the event
// commits or rolls back with the business write. Errors propagate.
func (r *Recorder) RecordTx(ctx context.Context, db repository.DBTX, transactionID, eventType string, status domain.TransactionStatus, actor string, data interface{}) error {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		raw = encoded
	}
	return r.events.Insert(ctx, db, &domain.TransactionEvent{
		TransactionID: transactionID,
		EventType:     eventType,
		Status:        status,
		Actor:         actor,
		Data:          raw,
		CreatedAt:     time.Now().UTC(),
	})
}

// Events returns the audit trail for a transaction, newest first.
func (r *Recorder) Events(ctx context.Context, transactionID string) ([]domain.TransactionEvent, error) {
	return r.events.ListByTransaction(ctx, r.db, transactionID)
}
