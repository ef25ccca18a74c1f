package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avatarly/payments/internal/domain"
	"github.com/avatarly/payments/internal/provider"
	"github.com/avatarly/payments/internal/repository"
	"github.com/avatarly/payments/internal/txlog"
)

// WebhookService ingests gateway deliveries. Every delivery attempt is
// recorded in webhook_deliveries whether or not the business transition
// succeeds; the capture path converges with client verification on the same
// conditional payment update.
type WebhookService struct {
	pool         *pgxpool.Pool
	gateway      Gateway
	payments     repository.PaymentRepository
	transactions repository.TransactionRepository
	outbox       repository.OutboxRepository
	deliveries   repository.WebhookDeliveryRepository
	verification *VerificationService
	txlog        *txlog.Recorder
	logger       *slog.Logger
}

func NewWebhookService(
	pool *pgxpool.Pool,
	gateway Gateway,
	payments repository.PaymentRepository,
	transactions repository.TransactionRepository,
	outbox repository.OutboxRepository,
	deliveries repository.WebhookDeliveryRepository,
	verification *VerificationService,
	recorder *txlog.Recorder,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		pool:         pool,
		gateway:      gateway,
		payments:     payments,
		transactions: transactions,
		outbox:       outbox,
		deliveries:   deliveries,
		verification: verification,
		txlog:        recorder,
		logger:       logger,
	}
}

// HandleDelivery processes one raw webhook delivery. The returned error is
// non-nil only for deliveries the gateway should retry (bad signature,
// malformed payload); business-level rejections are absorbed and recorded.
func (s *WebhookService) HandleDelivery(ctx context.Context, rawBody []byte, signature string) error {
	if !s.gateway.VerifyWebhookSignature(rawBody, signature) {
		s.record(ctx, "unknown", nil, false, domain.WebhookOutcomeRejected, "invalid signature", rawBody)
		s.logger.Warn("webhook signature rejected")
		return domain.ErrInvalidSignature()
	}

	event, err := provider.ParseWebhookEvent(rawBody)
	if err != nil {
		s.record(ctx, "unknown", nil, true, domain.WebhookOutcomeRejected, err.Error(), rawBody)
		return domain.ErrValidation("malformed webhook payload")
	}

	var (
		outcome   domain.WebhookOutcome
		errDetail string
		paymentID *string
	)
	if id := event.Payload.Payment.Entity.ID; id != "" {
		paymentID = &id
	}

	switch event.Event {
	case domain.WebhookPaymentCaptured, domain.WebhookPaymentAuthorized:
		outcome, errDetail = s.handleCaptured(ctx, &event.Payload.Payment.Entity)
	case domain.WebhookPaymentFailed:
		outcome, errDetail = s.handleFailed(ctx, &event.Payload.Payment.Entity)
	case domain.WebhookRefundProcessed:
		refund := &event.Payload.Refund.Entity
		if refund.PaymentID != "" {
			paymentID = &refund.PaymentID
		}
		outcome, errDetail = s.handleRefundProcessed(ctx, refund.ID)
	default:
		outcome = domain.WebhookOutcomeIgnored
	}

	s.record(ctx, event.Event, paymentID, true, outcome, errDetail, rawBody)
	return nil
}

// handleCaptured completes the payment through the same path as client
// verification. A payment already out of PENDING means the other path won;
// the delivery is recorded as ignored.
func (s *WebhookService) handleCaptured(ctx context.Context, entity *provider.GatewayPayment) (domain.WebhookOutcome, string) {
	payment, err := s.payments.FindByGatewayOrderID(ctx, s.pool, entity.OrderID)
	if err != nil {
		return domain.WebhookOutcomeError, err.Error()
	}
	if payment == nil {
		// A capture for an order this system never created needs an operator.
		s.logger.Error("webhook capture for unknown order",
			"gateway_order_id", entity.OrderID, "gateway_payment_id", entity.ID)
		return domain.WebhookOutcomeError, fmt.Sprintf("unknown order %s", entity.OrderID)
	}
	if payment.Status != domain.PaymentStatusPending {
		return domain.WebhookOutcomeIgnored, ""
	}
	if entity.Amount != payment.Amount {
		s.logger.Error("webhook amount mismatch",
			"gateway_order_id", entity.OrderID,
			"expected", payment.Amount, "actual", entity.Amount)
		return domain.WebhookOutcomeError, "amount mismatch"
	}

	completed, _, err := s.verification.complete(ctx, payment, entity.ID, domain.ActorGateway)
	if err != nil {
		return domain.WebhookOutcomeError, err.Error()
	}
	if completed == nil {
		return domain.WebhookOutcomeIgnored, ""
	}
	return domain.WebhookOutcomeProcessed, ""
}

// handleFailed marks the payment FAILED without touching credits. Failure
// after completion is ignored; the COMPLETED transition already consumed the
// single leave-PENDING move. A failure for an order this service never
// created still gets a FAILED stub row so the event stays auditable.
func (s *WebhookService) handleFailed(ctx context.Context, entity *provider.GatewayPayment) (domain.WebhookOutcome, string) {
	reason := entity.ErrorReason
	if reason == "" {
		reason = "payment failed at gateway"
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.WebhookOutcomeError, err.Error()
	}
	defer tx.Rollback(ctx)

	failed, err := s.payments.MarkFailed(ctx, tx, entity.OrderID, entity.ID, reason)
	if err != nil {
		return domain.WebhookOutcomeError, err.Error()
	}
	if failed == nil {
		return s.recordUnknownFailure(ctx, tx, entity, reason)
	}

	if err := s.verification.advancePurchase(ctx, tx, entity.OrderID, domain.TxStatusFailed); err != nil {
		return domain.WebhookOutcomeError, err.Error()
	}
	if err := s.outbox.Insert(ctx, tx, domain.NewPaymentFailedEvent(failed, reason)); err != nil {
		return domain.WebhookOutcomeError, err.Error()
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.WebhookOutcomeError, err.Error()
	}

	s.txlog.Record(ctx, entity.OrderID, "payment.failed", domain.TxStatusFailed, domain.ActorGateway,
		map[string]string{"gateway_payment_id": entity.ID, "reason": reason})
	s.logger.Info("payment failed",
		"gateway_order_id", entity.OrderID, "gateway_payment_id", entity.ID, "reason", reason)
	return domain.WebhookOutcomeProcessed, ""
}

// recordUnknownFailure handles a failure delivery that matched no PENDING
// payment. An order already out of PENDING means the terminal transition
// happened and the delivery is a duplicate; an order this service never
// created gets an upserted FAILED stub with no user, zero credits and no
// balance change, keyed by the gateway identifiers.
func (s *WebhookService) recordUnknownFailure(ctx context.Context, tx pgx.Tx, entity *provider.GatewayPayment, reason string) (domain.WebhookOutcome, string) {
	if entity.OrderID != "" {
		known, err := s.payments.FindByGatewayOrderID(ctx, tx, entity.OrderID)
		if err != nil {
			return domain.WebhookOutcomeError, err.Error()
		}
		if known != nil {
			return domain.WebhookOutcomeIgnored, ""
		}
	}
	if entity.ID != "" {
		existing, err := s.payments.FindByGatewayPaymentID(ctx, tx, entity.ID)
		if err != nil {
			return domain.WebhookOutcomeError, err.Error()
		}
		if existing != nil {
			return domain.WebhookOutcomeIgnored, ""
		}
	}

	orderID := entity.OrderID
	if orderID == "" {
		if entity.ID == "" {
			return domain.WebhookOutcomeIgnored, ""
		}
		orderID = "failed_" + entity.ID
	}
	currency := entity.Currency
	if currency == "" {
		currency = "INR"
	}

	stub, err := s.payments.InsertFailureStub(ctx, tx, orderID, entity.ID, entity.Amount, currency, reason)
	if err != nil {
		return domain.WebhookOutcomeError, err.Error()
	}
	if stub == nil {
		// Lost the insert race to a concurrent redelivery.
		return domain.WebhookOutcomeIgnored, ""
	}
	if err := s.outbox.Insert(ctx, tx, domain.NewPaymentFailedEvent(stub, reason)); err != nil {
		return domain.WebhookOutcomeError, err.Error()
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.WebhookOutcomeError, err.Error()
	}

	s.txlog.Record(ctx, orderID, "payment.failed", domain.TxStatusFailed, domain.ActorGateway,
		map[string]string{"gateway_payment_id": entity.ID, "reason": reason})
	s.logger.Warn("failure recorded for unknown order",
		"gateway_order_id", entity.OrderID, "gateway_payment_id", entity.ID, "reason", reason)
	return domain.WebhookOutcomeProcessed, ""
}

// handleRefundProcessed confirms a locally created refund once the gateway
// settles it. Unknown refund ids are ignored; gateway-initiated refunds are
// out of scope and handled by operators.
func (s *WebhookService) handleRefundProcessed(ctx context.Context, refundID string) (domain.WebhookOutcome, string) {
	refund, err := s.transactions.FindByTransactionID(ctx, s.pool, refundID)
	if err != nil {
		return domain.WebhookOutcomeError, err.Error()
	}
	if refund == nil || refund.Type != domain.TxRefund {
		return domain.WebhookOutcomeIgnored, ""
	}
	if _, err := s.transactions.UpdateStatus(ctx, s.pool, refund.ID,
		domain.TxStatusCompleted, domain.TxStatusInitiated, domain.TxStatusProcessing); err != nil {
		return domain.WebhookOutcomeError, err.Error()
	}
	s.txlog.Record(ctx, refundID, "refund.settled", domain.TxStatusCompleted, domain.ActorGateway, nil)
	return domain.WebhookOutcomeProcessed, ""
}

func (s *WebhookService) record(ctx context.Context, eventType string, paymentID *string, sigValid bool, outcome domain.WebhookOutcome, errDetail string, payload []byte) {
	var errPtr *string
	if errDetail != "" {
		errPtr = &errDetail
	}
	// The payload column is jsonb; wrap bodies that aren't valid JSON.
	if !json.Valid(payload) {
		payload, _ = json.Marshal(map[string]string{"raw": string(payload)})
	}
	delivery := &domain.WebhookDelivery{
		EventType:        eventType,
		GatewayPaymentID: paymentID,
		SignatureValid:   sigValid,
		Outcome:          outcome,
		Error:            errPtr,
		Payload:          payload,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.deliveries.Insert(ctx, s.pool, delivery); err != nil {
		// The delivery log is diagnostic; losing a row must not fail the
		// delivery itself.
		s.logger.Error("webhook delivery log write failed", "event_type", eventType, "error", err)
	}
}
