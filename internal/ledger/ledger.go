package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avatarly/payments/internal/domain"
	"github.com/avatarly/payments/internal/repository"
)

// Ledger is the only component allowed to mutate user credit balances. Every
// balance change is guarded by an idempotency key and paired with a ledger
// transaction row and an outbox event in the caller's database transaction.
type Ledger struct {
	users        repository.UserRepository
	transactions repository.TransactionRepository
	outbox       repository.OutboxRepository
	logger       *slog.Logger
}

func New(users repository.UserRepository, transactions repository.TransactionRepository, outbox repository.OutboxRepository, logger *slog.Logger) *Ledger {
	return &Ledger{users: users, transactions: transactions, outbox: outbox, logger: logger}
}

// AwardParams describes one credit award.
type AwardParams struct {
	// TransactionID is the idempotency key, typically the gateway payment id.
	TransactionID string
	UserID        uuid.UUID
	Credits       int64
	Metadata      interface{}
}

// DeductParams describes one credit deduction.
type DeductParams struct {
	TransactionID string
	UserID        uuid.UUID
	Credits       int64
	Metadata      interface{}
}

// Result is the outcome of a ledger operation.
type Result struct {
	Transaction *domain.Transaction
	Balance     int64
	// Duplicate is true when the idempotency key was already recorded and the
	// operation was skipped.
	Duplicate bool
}

// Award credits a user's balance exactly once per transaction id. Safe to call
// from concurrent paths racing on the same key; the loser observes Duplicate.
func (l *Ledger) Award(ctx context.Context, db repository.DBTX, params AwardParams) (*Result, error) {
	if params.Credits <= 0 {
		return nil, domain.ErrValidation("credit award must be positive")
	}

	existing, err := l.transactions.FindByTransactionID(ctx, db, params.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("check award idempotency: %w", err)
	}
	if existing != nil {
		user, err := l.users.FindByID(ctx, db, params.UserID)
		if err != nil {
			return nil, fmt.Errorf("load balance for duplicate award: %w", err)
		}
		return &Result{Transaction: existing, Balance: user.Credits, Duplicate: true}, nil
	}

	balance, err := l.users.AwardCredits(ctx, db, params.UserID, params.Credits)
	if err != nil {
		return nil, fmt.Errorf("award credits: %w", err)
	}

	tx, err := l.insertEntry(ctx, db, domain.TxCreditAward, params.TransactionID, params.UserID, params.Credits, params.Metadata)
	if err != nil {
		return nil, err
	}

	if err := l.outbox.Insert(ctx, db, domain.NewCreditsChangedEvent(tx, balance)); err != nil {
		return nil, fmt.Errorf("enqueue credits event: %w", err)
	}
	return &Result{Transaction: tx, Balance: balance}, nil
}

// Deduct debits a user's balance exactly once per transaction id. The balance
// check and decrement are one atomic storage operation; a shortfall returns
// InsufficientCredits with the balance untouched.
func (l *Ledger) Deduct(ctx context.Context, db repository.DBTX, params DeductParams) (*Result, error) {
	if params.Credits <= 0 {
		return nil, domain.ErrValidation("credit deduction must be positive")
	}

	existing, err := l.transactions.FindByTransactionID(ctx, db, params.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("check deduction idempotency: %w", err)
	}
	if existing != nil {
		user, err := l.users.FindByID(ctx, db, params.UserID)
		if err != nil {
			return nil, fmt.Errorf("load balance for duplicate deduction: %w", err)
		}
		return &Result{Transaction: existing, Balance: user.Credits, Duplicate: true}, nil
	}

	balance, ok, err := l.users.DeductCredits(ctx, db, params.UserID, params.Credits)
	if err != nil {
		return nil, fmt.Errorf("deduct credits: %w", err)
	}
	if !ok {
		return nil, domain.ErrInsufficientCredits()
	}

	tx, err := l.insertEntry(ctx, db, domain.TxCreditSpend, params.TransactionID, params.UserID, params.Credits, params.Metadata)
	if err != nil {
		return nil, err
	}

	if err := l.outbox.Insert(ctx, db, domain.NewCreditsChangedEvent(tx, balance)); err != nil {
		return nil, fmt.Errorf("enqueue credits event: %w", err)
	}
	return &Result{Transaction: tx, Balance: balance}, nil
}

// ClawBack removes up to params.Credits from the balance, clamping at zero
// when the user already spent part of them. Used by refunds, where the money
// leaves regardless of the remaining balance. Returns the shortfall (credits
// that could not be recovered); a non-zero shortfall also enqueues a
// reconciliation event for operators.
func (l *Ledger) ClawBack(ctx context.Context, db repository.DBTX, params DeductParams) (*Result, int64, error) {
	if params.Credits <= 0 {
		return nil, 0, domain.ErrValidation("credit claw-back must be positive")
	}

	existing, err := l.transactions.FindByTransactionID(ctx, db, params.TransactionID)
	if err != nil {
		return nil, 0, fmt.Errorf("check claw-back idempotency: %w", err)
	}
	if existing != nil {
		user, err := l.users.FindByID(ctx, db, params.UserID)
		if err != nil {
			return nil, 0, fmt.Errorf("load balance for duplicate claw-back: %w", err)
		}
		return &Result{Transaction: existing, Balance: user.Credits, Duplicate: true}, 0, nil
	}

	want := params.Credits
	var balance int64
	for {
		var ok bool
		balance, ok, err = l.users.DeductCredits(ctx, db, params.UserID, want)
		if err != nil {
			return nil, 0, fmt.Errorf("claw back credits: %w", err)
		}
		if ok {
			break
		}
		user, err := l.users.FindByID(ctx, db, params.UserID)
		if err != nil {
			return nil, 0, fmt.Errorf("load balance for claw-back clamp: %w", err)
		}
		if user.Credits <= 0 {
			want = 0
			balance = user.Credits
			break
		}
		// Clamp to whatever is left and retry; the balance can only have
		// shrunk between the read and the guarded decrement.
		want = user.Credits
	}

	shortfall := params.Credits - want

	tx, err := l.insertEntry(ctx, db, domain.TxCreditSpend, params.TransactionID, params.UserID, want, params.Metadata)
	if err != nil {
		return nil, 0, err
	}
	if err := l.outbox.Insert(ctx, db, domain.NewCreditsChangedEvent(tx, balance)); err != nil {
		return nil, 0, fmt.Errorf("enqueue credits event: %w", err)
	}
	if shortfall > 0 {
		l.logger.Warn("claw-back shortfall, reconciliation required",
			"user_id", params.UserID,
			"transaction_id", params.TransactionID,
			"requested", params.Credits,
			"recovered", want)
		if err := l.outbox.Insert(ctx, db, domain.NewReconciliationEvent(params.UserID, params.TransactionID, shortfall)); err != nil {
			return nil, 0, fmt.Errorf("enqueue reconciliation event: %w", err)
		}
	}
	return &Result{Transaction: tx, Balance: balance}, shortfall, nil
}

func (l *Ledger) insertEntry(ctx context.Context, db repository.DBTX, txType domain.TransactionType, transactionID string, userID uuid.UUID, credits int64, metadata interface{}) (*domain.Transaction, error) {
	var raw json.RawMessage
	if metadata != nil {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("encode ledger metadata: %w", err)
		}
		raw = encoded
	}
	now := time.Now().UTC()
	tx, err := l.transactions.Insert(ctx, db, &domain.Transaction{
		ID:            uuid.New(),
		TransactionID: transactionID,
		UserID:        &userID,
		Type:          txType,
		Status:        domain.TxStatusCompleted,
		Amount:        credits,
		Metadata:      raw,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	return tx, nil
}
