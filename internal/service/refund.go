package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avatarly/payments/internal/domain"
	"github.com/avatarly/payments/internal/ledger"
	"github.com/avatarly/payments/internal/repository"
	"github.com/avatarly/payments/internal/txlog"
)

// RefundService reverses completed purchases: it creates a child REFUND
// transaction, claws back the proportional credits and advances the parent to
// REFUNDED or PARTIALLY_REFUNDED. Cumulative refunds never exceed the
// original amount.
type RefundService struct {
	pool         *pgxpool.Pool
	transactions repository.TransactionRepository
	outbox       repository.OutboxRepository
	ledger       *ledger.Ledger
	txlog        *txlog.Recorder
	logger       *slog.Logger
}

func NewRefundService(
	pool *pgxpool.Pool,
	transactions repository.TransactionRepository,
	outbox repository.OutboxRepository,
	creditLedger *ledger.Ledger,
	recorder *txlog.Recorder,
	logger *slog.Logger,
) *RefundService {
	return &RefundService{
		pool:         pool,
		transactions: transactions,
		outbox:       outbox,
		ledger:       creditLedger,
		txlog:        recorder,
		logger:       logger,
	}
}

// RefundInput describes an operator-initiated refund. Amount zero means the
// full remaining refundable amount.
type RefundInput struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
}

// RefundResult is the created refund transaction plus the credits recovered.
type RefundResult struct {
	Refund           *domain.Transaction      `json:"refund"`
	CreditsRecovered int64                    `json:"credits_recovered"`
	CreditShortfall  int64                    `json:"credit_shortfall,omitempty"`
	ParentStatus     domain.TransactionStatus `json:"parent_status"`
}

// CreateRefund refunds a purchase, fully or partially.
func (s *RefundService) CreateRefund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	if input.TransactionID == "" {
		return nil, domain.ErrValidation("transaction_id is required")
	}
	if input.Amount < 0 {
		return nil, domain.ErrValidation("amount must not be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin refund tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the parent row so concurrent refunds serialize on the cumulative
	// bound; the sum of prior refunds must be read under the same lock.
	parent, err := s.transactions.LockByTransactionID(ctx, tx, input.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("load parent transaction: %w", err)
	}
	if parent == nil {
		return nil, domain.ErrNotFound("transaction", input.TransactionID)
	}
	if !parent.Refundable() {
		return nil, domain.ErrNotRefundable(fmt.Sprintf("transaction is a %s in status %s", parent.Type, parent.Status))
	}
	if parent.UserID == nil {
		return nil, domain.ErrNotRefundable("transaction has no owning user")
	}

	refunded, err := s.transactions.SumCompletedRefunds(ctx, tx, parent.ID)
	if err != nil {
		return nil, fmt.Errorf("sum prior refunds: %w", err)
	}
	remaining := parent.Amount - refunded
	if remaining <= 0 {
		return nil, domain.ErrNotRefundable("transaction already fully refunded")
	}

	amount := input.Amount
	if amount == 0 {
		amount = remaining
	}
	if amount > remaining {
		return nil, domain.ErrNotRefundable(fmt.Sprintf("refund %d exceeds remaining refundable %d", amount, remaining))
	}

	// Credits come back in proportion to the money going back. A purchase
	// whose metadata does not decode must not refund money while clawing
	// back nothing; that row needs an operator, not a silent zero.
	purchaseMeta, err := domain.ParsePurchaseMetadata(parent.Metadata)
	if err != nil {
		s.logger.Error("refund blocked on unreadable purchase metadata",
			"parent_transaction_id", parent.TransactionID, "error", err)
		return nil, domain.ErrNotRefundable("purchase metadata is unreadable; manual reconciliation required")
	}
	purchasedCredits := purchaseMeta.Credits
	if purchasedCredits <= 0 {
		return nil, domain.ErrNotRefundable("purchase metadata does not record purchased credits; manual reconciliation required")
	}
	clawback := purchasedCredits * amount / parent.Amount
	if amount == remaining {
		// Final refund sweeps any rounding residue.
		clawedSoFar := purchasedCredits * refunded / parent.Amount
		clawback = purchasedCredits - clawedSoFar
	}

	refundID := "rfnd_" + uuid.NewString()

	meta, _ := json.Marshal(map[string]interface{}{
		"reason":  input.Reason,
		"credits": clawback,
	})
	now := time.Now().UTC()
	refund, err := s.transactions.Insert(ctx, tx, &domain.Transaction{
		ID:                  uuid.New(),
		TransactionID:       refundID,
		UserID:              parent.UserID,
		Type:                domain.TxRefund,
		Status:              domain.TxStatusCompleted,
		Amount:              amount,
		FeeBreakdown:        domain.FeeBreakdown{NetAmount: amount},
		ParentTransactionID: &parent.ID,
		Metadata:            meta,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("insert refund transaction: %w", err)
	}

	var shortfall int64
	if clawback > 0 {
		_, shortfall, err = s.ledger.ClawBack(ctx, tx, ledger.DeductParams{
			TransactionID: "clawback_" + refundID,
			UserID:        *parent.UserID,
			Credits:       clawback,
			Metadata:      map[string]string{"refund_id": refundID, "reason": input.Reason},
		})
		if err != nil {
			return nil, err
		}
	}

	parentStatus := domain.TxStatusPartiallyRefunded
	if refunded+amount >= parent.Amount {
		parentStatus = domain.TxStatusRefunded
	}
	if _, err := s.transactions.UpdateStatus(ctx, tx, parent.ID, parentStatus,
		domain.TxStatusCompleted, domain.TxStatusPartiallyRefunded); err != nil {
		return nil, fmt.Errorf("advance parent transaction: %w", err)
	}

	if err := s.outbox.Insert(ctx, tx, domain.NewRefundCreatedEvent(refund, parent.TransactionID)); err != nil {
		return nil, fmt.Errorf("enqueue refund event: %w", err)
	}

	// The audit event commits atomically with the refund it documents.
	if err := s.txlog.RecordTx(ctx, tx, refundID, "refund.created", domain.TxStatusCompleted, domain.ActorAdmin,
		map[string]interface{}{
			"parent_transaction_id": parent.TransactionID,
			"amount":                amount,
			"credits_recovered":     clawback - shortfall,
			"credit_shortfall":      shortfall,
			"reason":                input.Reason,
		}); err != nil {
		return nil, fmt.Errorf("record refund event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit refund tx: %w", err)
	}

	s.logger.Info("refund created",
		"refund_id", refundID, "parent_transaction_id", parent.TransactionID,
		"amount", amount, "credits", clawback, "shortfall", shortfall)

	return &RefundResult{
		Refund:           refund,
		CreditsRecovered: clawback - shortfall,
		CreditShortfall:  shortfall,
		ParentStatus:     parentStatus,
	}, nil
}
