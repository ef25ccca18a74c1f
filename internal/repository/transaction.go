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

type transactionRepo struct{}

// NewTransactionRepository returns a pgx-backed TransactionRepository.
func NewTransactionRepository() TransactionRepository {
	return &transactionRepo{}
}

const transactionColumns = `id, transaction_id, user_id, type, status, amount,
	       platform_fee, gateway_fee, tax, net_amount, risk_score,
	       parent_transaction_id, metadata, created_at, updated_at`

func (r *transactionRepo) Insert(ctx context.Context, db DBTX, t *domain.Transaction) (*domain.Transaction, error) {
	meta := t.Metadata
	if meta == nil {
		meta = json.RawMessage(`{}`)
	}
	row := db.QueryRow(ctx, `
		INSERT INTO transactions
		  (id, transaction_id, user_id, type, status, amount,
		   platform_fee, gateway_fee, tax, net_amount, risk_score,
		   parent_transaction_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+transactionColumns,
		t.ID, t.TransactionID, t.UserID, string(t.Type), string(t.Status),
		infra.Int64ToNumeric(t.Amount),
		infra.Int64ToNumeric(t.PlatformFee),
		infra.Int64ToNumeric(t.GatewayFee),
		infra.Int64ToNumeric(t.Tax),
		infra.Int64ToNumeric(t.NetAmount),
		t.RiskScore, t.ParentTransactionID, meta,
	)
	return scanTransaction(row)
}

func (r *transactionRepo) FindByTransactionID(ctx context.Context, db DBTX, transactionID string) (*domain.Transaction, error) {
	row := db.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE transaction_id = $1`, transactionID)
	return scanTransaction(row)
}

// LockByTransactionID loads a transaction FOR UPDATE inside the caller's
// transaction. Refund creation locks the parent this way so concurrent
// refunds serialize on the cumulative-amount bound.
func (r *transactionRepo) LockByTransactionID(ctx context.Context, tx pgx.Tx, transactionID string) (*domain.Transaction, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE transaction_id = $1
		FOR UPDATE`, transactionID)
	return scanTransaction(row)
}

func (r *transactionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Transaction, error) {
	row := db.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// UpdateStatus is guarded by the expected source statuses so concurrent
// writers cannot move a transaction backward. Zero matched rows returns nil.
func (r *transactionRepo) UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, to domain.TransactionStatus, from ...domain.TransactionStatus) (*domain.Transaction, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}
	row := db.QueryRow(ctx, `
		UPDATE transactions
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING `+transactionColumns,
		id, string(to), fromStrs)
	return scanTransaction(row)
}

func (r *transactionRepo) ListByUser(ctx context.Context, db DBTX, userID uuid.UUID, offset, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3`, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransactionFrom(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func (r *transactionRepo) CountByUser(ctx context.Context, db DBTX, userID uuid.UUID) (int64, error) {
	var count int64
	err := db.QueryRow(ctx, `
		SELECT count(*) FROM transactions WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}

func (r *transactionRepo) SumCompletedRefunds(ctx context.Context, db DBTX, parentID uuid.UUID) (int64, error) {
	var sumNum pgtype.Numeric
	err := db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE parent_transaction_id = $1 AND type = $2 AND status = $3`,
		parentID, string(domain.TxRefund), string(domain.TxStatusCompleted)).Scan(&sumNum)
	if err != nil {
		return 0, fmt.Errorf("sum refunds: %w", err)
	}
	return infra.NumericToInt64(sumNum)
}

func (r *transactionRepo) DailySumByType(ctx context.Context, db DBTX, userID uuid.UUID, txType string) (int64, error) {
	var sumNum pgtype.Numeric
	err := db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND type = $2
		  AND created_at >= date_trunc('day', now() AT TIME ZONE 'UTC')`,
		userID, txType).Scan(&sumNum)
	if err != nil {
		return 0, fmt.Errorf("daily sum by type: %w", err)
	}
	return infra.NumericToInt64(sumNum)
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t, err := scanTransactionFrom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func scanTransactionFrom(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var amountNum, platformNum, gatewayNum, taxNum, netNum pgtype.Numeric
	err := row.Scan(
		&t.ID, &t.TransactionID, &t.UserID, &t.Type, &t.Status,
		&amountNum, &platformNum, &gatewayNum, &taxNum, &netNum,
		&t.RiskScore, &t.ParentTransactionID, &t.Metadata,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	for _, conv := range []struct {
		dst *int64
		src pgtype.Numeric
	}{
		{&t.Amount, amountNum},
		{&t.PlatformFee, platformNum},
		{&t.GatewayFee, gatewayNum},
		{&t.Tax, taxNum},
		{&t.NetAmount, netNum},
	} {
		v, convErr := infra.NumericToInt64(conv.src)
		if convErr != nil {
			return nil, fmt.Errorf("convert transaction amount: %w", convErr)
		}
		*conv.dst = v
	}
	return &t, nil
}
