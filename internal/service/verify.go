package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avatarly/payments/internal/domain"
	"github.com/avatarly/payments/internal/ledger"
	"github.com/avatarly/payments/internal/repository"
	"github.com/avatarly/payments/internal/txlog"
)

// VerificationService handles the client callback after checkout. It races
// the webhook on the same conditional payment update; whichever path wins
// performs the award, the other converges to an idempotent no-op.
type VerificationService struct {
	pool          *pgxpool.Pool
	gateway       Gateway
	payments      repository.PaymentRepository
	transactions  repository.TransactionRepository
	outbox        repository.OutboxRepository
	ledger        *ledger.Ledger
	subscriptions *SubscriptionService
	txlog         *txlog.Recorder
	logger        *slog.Logger
}

func NewVerificationService(
	pool *pgxpool.Pool,
	gateway Gateway,
	payments repository.PaymentRepository,
	transactions repository.TransactionRepository,
	outbox repository.OutboxRepository,
	creditLedger *ledger.Ledger,
	subscriptions *SubscriptionService,
	recorder *txlog.Recorder,
	logger *slog.Logger,
) *VerificationService {
	return &VerificationService{
		pool:          pool,
		gateway:       gateway,
		payments:      payments,
		transactions:  transactions,
		outbox:        outbox,
		ledger:        creditLedger,
		subscriptions: subscriptions,
		txlog:         recorder,
		logger:        logger,
	}
}

// VerifyInput is the client's post-checkout callback payload.
type VerifyInput struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

// VerifyResult reports the completion outcome. AlreadyProcessed marks the
// idempotent path: the payment was completed before this call arrived.
type VerifyResult struct {
	AlreadyProcessed bool  `json:"already_processed"`
	CreditsAwarded   int64 `json:"credits_awarded"`
	Balance          int64 `json:"balance"`
}

// Verify validates the gateway signature, confirms the capture with the
// gateway, then completes the payment and awards credits in one database
// transaction.
func (s *VerificationService) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
		return nil, domain.ErrValidation("gateway_order_id, gateway_payment_id and signature are required")
	}

	if !s.gateway.VerifyPaymentSignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		s.txlog.Record(ctx, input.GatewayOrderID, "verification.signature_rejected",
			domain.TxStatusInitiated, domain.ActorClient, map[string]string{
				"gateway_payment_id": input.GatewayPaymentID,
			})
		s.logger.Warn("payment signature rejected",
			"gateway_order_id", input.GatewayOrderID, "gateway_payment_id", input.GatewayPaymentID)
		return nil, domain.ErrInvalidSignature()
	}

	payment, err := s.payments.FindByGatewayOrderID(ctx, s.pool, input.GatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if payment == nil {
		return nil, domain.ErrPaymentNotFound(input.GatewayOrderID)
	}

	switch payment.Status {
	case domain.PaymentStatusCompleted:
		return &VerifyResult{AlreadyProcessed: true, CreditsAwarded: payment.Credits}, nil
	case domain.PaymentStatusFailed:
		return nil, domain.ErrConflict("payment already failed")
	}

	// The gateway is the source of truth for capture status and amount; the
	// signature alone does not prove the money moved.
	remote, err := s.gateway.FetchPayment(ctx, input.GatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if remote.OrderID != input.GatewayOrderID {
		return nil, domain.ErrInvalidSignature()
	}
	if remote.Amount != payment.Amount {
		s.logger.Error("gateway amount mismatch",
			"gateway_order_id", input.GatewayOrderID,
			"expected", payment.Amount, "actual", remote.Amount)
		return nil, domain.ErrValidation("payment amount mismatch")
	}
	if remote.Status != "captured" && remote.Status != "authorized" {
		return nil, domain.ErrValidation(fmt.Sprintf("payment not captured (status %s)", remote.Status))
	}

	completed, balance, err := s.complete(ctx, payment, input.GatewayPaymentID, domain.ActorClient)
	if err != nil {
		return nil, err
	}
	if completed == nil {
		// Lost the race against the webhook; the award already happened.
		return &VerifyResult{AlreadyProcessed: true, CreditsAwarded: payment.Credits}, nil
	}

	return &VerifyResult{CreditsAwarded: completed.Credits, Balance: balance}, nil
}

// complete performs the atomic PENDING→COMPLETED transition, credit award,
// subscription update and outbox insert. Returns (nil, 0, nil) when another
// writer already completed the payment. Shared with webhook ingestion.
func (s *VerificationService) complete(ctx context.Context, payment *domain.Payment, gatewayPaymentID, actor string) (*domain.Payment, int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("begin completion tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated, err := s.payments.MarkCompleted(ctx, tx, payment.GatewayOrderID, gatewayPaymentID)
	if err != nil {
		return nil, 0, fmt.Errorf("mark payment completed: %w", err)
	}
	if updated == nil {
		return nil, 0, nil
	}
	if updated.UserID == nil {
		// Only locally created payments are PENDING, and those always carry
		// a user. A completion without one must never award credits.
		return nil, 0, fmt.Errorf("payment %s completed without a user", updated.GatewayOrderID)
	}

	award, err := s.ledger.Award(ctx, tx, ledger.AwardParams{
		TransactionID: gatewayPaymentID,
		UserID:        *updated.UserID,
		Credits:       updated.Credits,
		Metadata: map[string]string{
			"gateway_order_id": updated.GatewayOrderID,
			"source":           "purchase",
		},
	})
	if err != nil {
		return nil, 0, err
	}

	if err := s.advancePurchase(ctx, tx, updated.GatewayOrderID, domain.TxStatusCompleted); err != nil {
		return nil, 0, err
	}

	if pkg := packageTypeFrom(updated.Metadata); pkg != "" {
		if _, err := s.subscriptions.ApplyPurchase(ctx, tx, *updated.UserID, pkg, updated.Credits); err != nil {
			return nil, 0, err
		}
	}

	if err := s.outbox.Insert(ctx, tx, domain.NewPaymentCompletedEvent(updated)); err != nil {
		return nil, 0, fmt.Errorf("enqueue payment event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit completion tx: %w", err)
	}

	s.txlog.Record(ctx, updated.GatewayOrderID, "payment.completed", domain.TxStatusCompleted, actor,
		map[string]interface{}{
			"gateway_payment_id": gatewayPaymentID,
			"credits":            updated.Credits,
			"balance_after":      award.Balance,
		})
	s.logger.Info("payment completed",
		"gateway_order_id", updated.GatewayOrderID,
		"gateway_payment_id", gatewayPaymentID,
		"user_id", updated.UserID, "credits", updated.Credits, "actor", actor)

	return updated, award.Balance, nil
}

// advancePurchase moves the purchase ledger transaction forward. A missing or
// already-terminal row is a no-op; the status machine never moves backward.
func (s *VerificationService) advancePurchase(ctx context.Context, db repository.DBTX, orderID string, to domain.TransactionStatus) error {
	purchase, err := s.transactions.FindByTransactionID(ctx, db, orderID)
	if err != nil {
		return fmt.Errorf("load purchase transaction: %w", err)
	}
	if purchase == nil || !domain.CanTransition(purchase.Status, to) {
		return nil
	}
	if _, err := s.transactions.UpdateStatus(ctx, db, purchase.ID, to, purchase.Status); err != nil {
		return fmt.Errorf("advance purchase transaction: %w", err)
	}
	return nil
}

// packageTypeFrom is tolerant of empty or foreign metadata: a purchase
// without a package is a custom credit buy and never extends a subscription.
func packageTypeFrom(metadata json.RawMessage) string {
	meta, err := domain.ParsePurchaseMetadata(metadata)
	if err != nil {
		return ""
	}
	return meta.PackageType
}
