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
	"github.com/avatarly/payments/internal/policy"
	"github.com/avatarly/payments/internal/repository"
	"github.com/avatarly/payments/internal/txlog"
)

// OrderService creates purchase intents: it prices the request, checks
// purchase limits, creates the remote gateway order and records the local
// PENDING payment plus its INITIATED ledger transaction.
type OrderService struct {
	pool         *pgxpool.Pool
	gateway      Gateway
	payments     repository.PaymentRepository
	transactions repository.TransactionRepository
	users        repository.UserRepository
	txlog        *txlog.Recorder
	catalog      domain.PackageCatalog
	fees         policy.FeeSchedule
	limits       policy.PurchaseLimitPolicy
	logger       *slog.Logger
}

func NewOrderService(
	pool *pgxpool.Pool,
	gateway Gateway,
	payments repository.PaymentRepository,
	transactions repository.TransactionRepository,
	users repository.UserRepository,
	recorder *txlog.Recorder,
	catalog domain.PackageCatalog,
	fees policy.FeeSchedule,
	limits policy.PurchaseLimitPolicy,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		pool:         pool,
		gateway:      gateway,
		payments:     payments,
		transactions: transactions,
		users:        users,
		txlog:        recorder,
		catalog:      catalog,
		fees:         fees,
		limits:       limits,
		logger:       logger,
	}
}

// CreateOrderInput is a priced purchase request. Exactly one of PackageType
// and Credits must be set.
type CreateOrderInput struct {
	PackageType string `json:"package_type"`
	Credits     int64  `json:"credits"`
	Currency    string `json:"currency"`
	Country     string `json:"country"`
}

// CreateOrderResult is what the checkout client needs to open the gateway
// widget.
type CreateOrderResult struct {
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	CreditsAwarded int64  `json:"credits_awarded"`
	GatewayKeyID   string `json:"gateway_key_id"`
}

// CreateOrder creates the gateway order first and only then writes local
// state, so a gateway failure leaves nothing behind. The returned order id is
// the correlation key for verification and webhooks.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*CreateOrderResult, error) {
	if input.PackageType != "" && input.Credits > 0 {
		return nil, domain.ErrValidation("specify either package_type or credits, not both")
	}

	credits, amount, err := s.catalog.Resolve(input.PackageType, input.Credits)
	if err != nil {
		return nil, err
	}

	currency := input.Currency
	if currency == "" {
		currency = "INR"
	}
	if err := domain.ValidateCurrency(currency); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	user, err := s.users.FindByID(ctx, s.pool, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		// Account rows are provisioned lazily; the account service owns the
		// profile, we only keep the balance.
		user = &domain.User{ID: userID, Currency: currency, CreatedAt: time.Now().UTC()}
		if err := s.users.Create(ctx, s.pool, user); err != nil {
			return nil, fmt.Errorf("provision user balance: %w", err)
		}
	}

	daily, err := s.transactions.DailySumByType(ctx, s.pool, userID, string(domain.TxPurchase))
	if err != nil {
		return nil, fmt.Errorf("load daily purchases: %w", err)
	}
	if eval := policy.EvaluatePurchaseLimits(s.limits, amount, daily); !eval.Allowed {
		s.logger.Warn("purchase limit breached",
			"user_id", userID, "limit", eval.BreachedLimit, "requested", eval.RequestedAmt)
		return nil, domain.ErrLimitBreached(eval.BreachedLimit)
	}

	risk := policy.AssessRisk(policy.RiskSignals{
		Amount:         amount,
		Country:        input.Country,
		AccountAgeDays: int(time.Since(user.CreatedAt).Hours() / 24),
		OccurredAt:     time.Now(),
	})

	order, err := s.gateway.CreateOrder(ctx, amount, currency, "rcpt_"+uuid.NewString())
	if err != nil {
		return nil, err
	}

	meta, err := json.Marshal(domain.PurchaseMetadata{
		PackageType: input.PackageType,
		Credits:     credits,
		RiskFlags:   risk.Flags,
	})
	if err != nil {
		return nil, fmt.Errorf("encode purchase metadata: %w", err)
	}

	status := domain.TxStatusInitiated
	if risk.Score >= policy.ReviewThreshold {
		status = domain.TxStatusUnderReview
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin order tx: %w", err)
	}
	defer tx.Rollback(ctx)

	payment := &domain.Payment{
		ID:             uuid.New(),
		UserID:         &userID,
		GatewayOrderID: order.ID,
		Amount:         amount,
		Currency:       currency,
		Status:         domain.PaymentStatusPending,
		Credits:        credits,
		Metadata:       meta,
	}
	if err := s.payments.Create(ctx, tx, payment); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	now := time.Now().UTC()
	if _, err := s.transactions.Insert(ctx, tx, &domain.Transaction{
		ID:            uuid.New(),
		TransactionID: order.ID,
		UserID:        &userID,
		Type:          domain.TxPurchase,
		Status:        status,
		Amount:        amount,
		FeeBreakdown:  s.fees.ComputeFees(amount, domain.TxPurchase, "razorpay"),
		RiskScore:     risk.Score,
		Metadata:      meta,
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		return nil, fmt.Errorf("insert purchase transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order tx: %w", err)
	}

	s.txlog.Record(ctx, order.ID, "order.created", status, domain.ActorClient, map[string]interface{}{
		"amount":     amount,
		"credits":    credits,
		"risk_score": risk.Score,
	})
	s.logger.Info("order created",
		"user_id", userID, "gateway_order_id", order.ID,
		"amount", amount, "credits", credits, "risk_score", risk.Score)

	return &CreateOrderResult{
		GatewayOrderID: order.ID,
		Amount:         amount,
		Currency:       currency,
		CreditsAwarded: credits,
		GatewayKeyID:   s.gateway.KeyID(),
	}, nil
}

// ListPayments returns the user's purchase intents, newest first.
func (s *OrderService) ListPayments(ctx context.Context, userID uuid.UUID, page, limit int) ([]domain.Payment, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	payments, err := s.payments.ListByUser(ctx, s.pool, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	return payments, nil
}

// Packages returns the purchasable package table.
func (s *OrderService) Packages() []domain.CreditPackage {
	packages := make([]domain.CreditPackage, 0, len(s.catalog.Packages))
	for _, key := range []string{"starter", "pro", "studio"} {
		if pkg, ok := s.catalog.Packages[key]; ok {
			packages = append(packages, pkg)
		}
	}
	return packages
}
