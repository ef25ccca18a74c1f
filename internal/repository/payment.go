package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avatarly/payments/internal/domain"
	"github.com/avatarly/payments/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type paymentRepo struct{}

// NewPaymentRepository returns a pgx-backed PaymentRepository.
func NewPaymentRepository() PaymentRepository {
	return &paymentRepo{}
}

const paymentColumns = `id, user_id, gateway_order_id, gateway_payment_id, amount, currency,
	       status, credits, failure_reason, metadata, created_at, updated_at`

func (r *paymentRepo) Create(ctx context.Context, db DBTX, p *domain.Payment) error {
	meta := p.Metadata
	if meta == nil {
		meta = json.RawMessage(`{}`)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO payments (id, user_id, gateway_order_id, gateway_payment_id,
			amount, currency, status, credits, failure_reason, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.UserID, p.GatewayOrderID, p.GatewayPaymentID,
		infra.Int64ToNumeric(p.Amount), p.Currency, string(p.Status),
		infra.Int64ToNumeric(p.Credits), p.FailureReason, meta,
	)
	return err
}

func (r *paymentRepo) FindByGatewayOrderID(ctx context.Context, db DBTX, orderID string) (*domain.Payment, error) {
	row := db.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments WHERE gateway_order_id = $1`, orderID)
	return scanPayment(row)
}

func (r *paymentRepo) FindByGatewayPaymentID(ctx context.Context, db DBTX, paymentID string) (*domain.Payment, error) {
	row := db.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments WHERE gateway_payment_id = $1`, paymentID)
	return scanPayment(row)
}

// MarkCompleted is the single write both the client verification path and the
// webhook path converge on. The status guard makes the first writer win; the
// second sees zero rows and gets nil back.
func (r *paymentRepo) MarkCompleted(ctx context.Context, db DBTX, orderID, gatewayPaymentID string) (*domain.Payment, error) {
	row := db.QueryRow(ctx, `
		UPDATE payments
		SET status = $2, gateway_payment_id = $3, updated_at = now()
		WHERE gateway_order_id = $1 AND status = $4
		RETURNING `+paymentColumns,
		orderID, string(domain.PaymentStatusCompleted), gatewayPaymentID,
		string(domain.PaymentStatusPending))
	return scanPayment(row)
}

func (r *paymentRepo) MarkFailed(ctx context.Context, db DBTX, orderID, gatewayPaymentID, reason string) (*domain.Payment, error) {
	row := db.QueryRow(ctx, `
		UPDATE payments
		SET status = $2, gateway_payment_id = COALESCE(NULLIF($3, ''), gateway_payment_id),
			failure_reason = $4, updated_at = now()
		WHERE gateway_order_id = $1 AND status = $5
		RETURNING `+paymentColumns,
		orderID, string(domain.PaymentStatusFailed), gatewayPaymentID, reason,
		string(domain.PaymentStatusPending))
	return scanPayment(row)
}

// InsertFailureStub records a FAILED payment for a gateway failure whose order
// this service never created. The row carries no user and zero credits and
// exists so the failure is auditable by gateway payment id. A concurrent
// insert for the same order loses the conflict and gets nil back.
func (r *paymentRepo) InsertFailureStub(ctx context.Context, db DBTX, orderID, gatewayPaymentID string, amount int64, currency, reason string) (*domain.Payment, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO payments (id, user_id, gateway_order_id, gateway_payment_id,
			amount, currency, status, credits, failure_reason, metadata)
		VALUES ($1, NULL, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, '{}')
		ON CONFLICT (gateway_order_id) DO NOTHING
		RETURNING `+paymentColumns,
		uuid.New(), orderID, gatewayPaymentID,
		infra.Int64ToNumeric(amount), currency, string(domain.PaymentStatusFailed),
		infra.Int64ToNumeric(0), reason)
	return scanPayment(row)
}

func (r *paymentRepo) ListByUser(ctx context.Context, db DBTX, userID uuid.UUID, offset, limit int) ([]domain.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := db.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3`, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPaymentFrom(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	p, err := scanPaymentFrom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func scanPaymentFrom(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var amountNum, creditsNum pgtype.Numeric
	err := row.Scan(
		&p.ID, &p.UserID, &p.GatewayOrderID, &p.GatewayPaymentID,
		&amountNum, &p.Currency, &p.Status, &creditsNum,
		&p.FailureReason, &p.Metadata, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	if p.Amount, err = infra.NumericToInt64(amountNum); err != nil {
		return nil, fmt.Errorf("convert payment amount: %w", err)
	}
	if p.Credits, err = infra.NumericToInt64(creditsNum); err != nil {
		return nil, fmt.Errorf("convert payment credits: %w", err)
	}
	return &p, nil
}
