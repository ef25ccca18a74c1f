package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avatarly/payments/internal/domain"
	"github.com/avatarly/payments/internal/ledger"
	"github.com/avatarly/payments/internal/repository"
	"github.com/avatarly/payments/internal/txlog"
)

// CreditService exposes the balance and the spend path used by the avatar
// generation collaborator. Spends are idempotent on the caller-supplied
// transaction id.
type CreditService struct {
	pool         *pgxpool.Pool
	users        repository.UserRepository
	transactions repository.TransactionRepository
	ledger       *ledger.Ledger
	txlog        *txlog.Recorder
	logger       *slog.Logger
}

func NewCreditService(
	pool *pgxpool.Pool,
	users repository.UserRepository,
	transactions repository.TransactionRepository,
	creditLedger *ledger.Ledger,
	recorder *txlog.Recorder,
	logger *slog.Logger,
) *CreditService {
	return &CreditService{
		pool:         pool,
		users:        users,
		transactions: transactions,
		ledger:       creditLedger,
		txlog:        recorder,
		logger:       logger,
	}
}

// Balance returns the user's current credit balance. Users without a balance
// row simply have zero credits.
func (s *CreditService) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := s.users.FindByID(ctx, s.pool, userID)
	if err != nil {
		return 0, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return 0, nil
	}
	return user.Credits, nil
}

// SpendInput is one credit consumption request. TransactionID is the caller's
// idempotency key; retries with the same id deduct once.
type SpendInput struct {
	Amount        int64  `json:"amount"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// SpendResult reports the post-deduction balance.
type SpendResult struct {
	Balance   int64 `json:"balance"`
	Duplicate bool  `json:"duplicate"`
}

// Spend deducts credits through the ledger.
func (s *CreditService) Spend(ctx context.Context, userID uuid.UUID, input SpendInput) (*SpendResult, error) {
	if input.TransactionID == "" {
		return nil, domain.ErrValidation("transaction_id is required")
	}
	if err := domain.ValidatePositiveAmount(input.Amount); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin spend tx: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := s.ledger.Deduct(ctx, tx, ledger.DeductParams{
		TransactionID: input.TransactionID,
		UserID:        userID,
		Credits:       input.Amount,
		Metadata:      map[string]string{"reason": input.Reason},
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit spend tx: %w", err)
	}

	if !res.Duplicate {
		s.txlog.Record(ctx, input.TransactionID, "credits.spent", domain.TxStatusCompleted, domain.ActorSystem,
			map[string]interface{}{"amount": input.Amount, "balance_after": res.Balance})
	}
	return &SpendResult{Balance: res.Balance, Duplicate: res.Duplicate}, nil
}

// HistoryPage is one page of a user's transactions, newest first.
type HistoryPage struct {
	Transactions []domain.Transaction `json:"transactions"`
	Total        int64                `json:"total"`
	Page         int                  `json:"page"`
	Limit        int                  `json:"limit"`
}

// History returns the user's transaction history, paginated.
func (s *CreditService) History(ctx context.Context, userID uuid.UUID, page, limit int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	transactions, err := s.transactions.ListByUser(ctx, s.pool, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	total, err := s.transactions.CountByUser(ctx, s.pool, userID)
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	return &HistoryPage{Transactions: transactions, Total: total, Page: page, Limit: limit}, nil
}
