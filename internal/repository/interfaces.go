package repository

import (
	"context"

	"github.com/avatarly/payments/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PaymentRepository provides access to the payments table.
type PaymentRepository interface {
	// Create inserts a new PENDING purchase intent.
	Create(ctx context.Context, db DBTX, payment *domain.Payment) error

	// FindByGatewayOrderID returns a payment by its unique gateway order id.
	FindByGatewayOrderID(ctx context.Context, db DBTX, orderID string) (*domain.Payment, error)

	// FindByGatewayPaymentID returns a payment by the gateway payment id.
	FindByGatewayPaymentID(ctx context.Context, db DBTX, paymentID string) (*domain.Payment, error)

	// MarkCompleted performs the conditional PENDING→COMPLETED transition.
	// Returns nil (no error) when another writer already won the race.
	MarkCompleted(ctx context.Context, db DBTX, orderID, gatewayPaymentID string) (*domain.Payment, error)

	// MarkFailed performs the conditional PENDING→FAILED transition.
	MarkFailed(ctx context.Context, db DBTX, orderID, gatewayPaymentID, reason string) (*domain.Payment, error)

	// InsertFailureStub upserts a FAILED payment with no user and zero credits
	// for a gateway failure whose order this service never created. Returns
	// nil when the order id already exists.
	InsertFailureStub(ctx context.Context, db DBTX, orderID, gatewayPaymentID string, amount int64, currency, reason string) (*domain.Payment, error)

	// ListByUser returns a page of the user's payments, newest first.
	ListByUser(ctx context.Context, db DBTX, userID uuid.UUID, offset, limit int) ([]domain.Payment, error)
}

// TransactionRepository provides access to the transactions ledger table.
type TransactionRepository interface {
	// Insert creates a new ledger transaction. The fee breakdown is computed
	// once by the caller and never mutated afterward.
	Insert(ctx context.Context, db DBTX, tx *domain.Transaction) (*domain.Transaction, error)

	// FindByTransactionID checks the idempotency key. Returns nil if absent.
	FindByTransactionID(ctx context.Context, db DBTX, transactionID string) (*domain.Transaction, error)

	// FindByID returns a transaction by internal id.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Transaction, error)

	// LockByTransactionID loads a transaction FOR UPDATE inside the caller's
	// transaction, serializing writers that enforce cross-row bounds on it.
	LockByTransactionID(ctx context.Context, tx pgx.Tx, transactionID string) (*domain.Transaction, error)

	// UpdateStatus performs a guarded status transition. Returns nil when the
	// row was not in any of the expected source statuses (no-op, not an error).
	UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, to domain.TransactionStatus, from ...domain.TransactionStatus) (*domain.Transaction, error)

	// ListByUser returns a page of the user's transactions, newest first.
	ListByUser(ctx context.Context, db DBTX, userID uuid.UUID, offset, limit int) ([]domain.Transaction, error)

	// CountByUser returns the user's total transaction count for pagination.
	CountByUser(ctx context.Context, db DBTX, userID uuid.UUID) (int64, error)

	// SumCompletedRefunds returns the cumulative refunded amount against a
	// parent transaction.
	SumCompletedRefunds(ctx context.Context, db DBTX, parentID uuid.UUID) (int64, error)

	// DailySumByType returns the total amount of transactions of the given
	// type for a user since the start of the current calendar day (UTC).
	DailySumByType(ctx context.Context, db DBTX, userID uuid.UUID, txType string) (int64, error)
}

// EventRepository provides append-only access to transaction_events.
type EventRepository interface {
	// Insert appends an event row. Rows are never updated or deleted.
	Insert(ctx context.Context, db DBTX, event *domain.TransactionEvent) error

	// ListByTransaction returns the event stream, newest first.
	ListByTransaction(ctx context.Context, db DBTX, transactionID string) ([]domain.TransactionEvent, error)
}

// UserRepository provides access to the users credit balances.
type UserRepository interface {
	// FindByID returns a user by ID.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.User, error)

	// Create inserts a new user balance row.
	Create(ctx context.Context, db DBTX, user *domain.User) error

	// AwardCredits atomically increments credits and returns the new balance.
	AwardCredits(ctx context.Context, db DBTX, userID uuid.UUID, amount int64) (int64, error)

	// DeductCredits atomically decrements credits, guarded by credits >= amount
	// at the storage layer. Returns (balance, true) on success and (0, false)
	// when the balance was insufficient, leaving it unchanged.
	DeductCredits(ctx context.Context, db DBTX, userID uuid.UUID, amount int64) (int64, bool, error)
}

// SubscriptionRepository provides access to the subscriptions table.
type SubscriptionRepository interface {
	// FindActiveByUser returns the user's active subscription, locking the row
	// when called within a transaction. Returns nil if none.
	FindActiveByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Subscription, error)

	// Create inserts a new subscription.
	Create(ctx context.Context, db DBTX, sub *domain.Subscription) error

	// Extend pushes the end of the active window and adds included credits.
	Extend(ctx context.Context, db DBTX, id uuid.UUID, addCredits int64, newEndsAt string) error
}

// WebhookDeliveryRepository provides append-only access to webhook_deliveries.
type WebhookDeliveryRepository interface {
	Insert(ctx context.Context, db DBTX, delivery *domain.WebhookDelivery) error
}

// OutboxRow is an event_outbox row including its sequence id.
type OutboxRow struct {
	SeqID int64
	domain.OutboxDraft
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the
	// business write).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events for the outbox consumer.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]OutboxRow, error)

	// MarkPublished marks events as published.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}
