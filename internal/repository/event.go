package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avatarly/payments/internal/domain"
)

type eventRepo struct{}

// NewEventRepository returns a pgx-backed EventRepository.
func NewEventRepository() EventRepository {
	return &eventRepo{}
}

func (r *eventRepo) Insert(ctx context.Context, db DBTX, e *domain.TransactionEvent) error {
	data := e.Data
	if data == nil {
		data = json.RawMessage(`{}`)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO transaction_events (transaction_id, event_type, status, actor, data)
		VALUES ($1, $2, $3, $4, $5)`,
		e.TransactionID, e.EventType, string(e.Status), e.Actor, data)
	if err != nil {
		return fmt.Errorf("insert transaction event: %w", err)
	}
	return nil
}

func (r *eventRepo) ListByTransaction(ctx context.Context, db DBTX, transactionID string) ([]domain.TransactionEvent, error) {
	rows, err := db.Query(ctx, `
		SELECT id, transaction_id, event_type, status, actor, data, created_at
		FROM transaction_events
		WHERE transaction_id = $1
		ORDER BY id DESC`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query transaction events: %w", err)
	}
	defer rows.Close()

	var events []domain.TransactionEvent
	for rows.Next() {
		var e domain.TransactionEvent
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.EventType, &e.Status, &e.Actor, &e.Data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
