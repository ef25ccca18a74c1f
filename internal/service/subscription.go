package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/avatarly/payments/internal/domain"
	"github.com/avatarly/payments/internal/repository"
)

// subscriptionWindow is the length of the access window a package purchase
// opens or extends.
const subscriptionWindow = 30 * 24 * time.Hour

// SubscriptionService keeps the one-active-subscription-per-user invariant.
// All writes happen inside the caller's payment-completion transaction; the
// partial unique index on (user_id) WHERE status='active' backs up the
// row lock taken here.
type SubscriptionService struct {
	subscriptions repository.SubscriptionRepository
	logger        *slog.Logger
}

func NewSubscriptionService(subscriptions repository.SubscriptionRepository, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{subscriptions: subscriptions, logger: logger}
}

// ApplyPurchase opens a new 30-day window for the package, or extends the
// active one and adds the package credits to its included total. Called only
// for fixed package purchases; custom credit buys don't touch subscriptions.
func (s *SubscriptionService) ApplyPurchase(ctx context.Context, tx pgx.Tx, userID uuid.UUID, packageType string, credits int64) (*domain.Subscription, error) {
	active, err := s.subscriptions.FindActiveByUser(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("find active subscription: %w", err)
	}

	now := time.Now().UTC()
	if active == nil {
		sub := &domain.Subscription{
			ID:              uuid.New(),
			UserID:          userID,
			PackageType:     packageType,
			Status:          domain.SubscriptionActive,
			CreditsIncluded: credits,
			StartsAt:        now,
			EndsAt:          now.Add(subscriptionWindow),
		}
		if err := s.subscriptions.Create(ctx, tx, sub); err != nil {
			return nil, fmt.Errorf("create subscription: %w", err)
		}
		return sub, nil
	}

	// Extend from the current end, not from now, so back-to-back purchases
	// stack instead of overlapping.
	endsAt := active.EndsAt
	if endsAt.Before(now) {
		endsAt = now
	}
	newEndsAt := endsAt.Add(subscriptionWindow)
	if err := s.subscriptions.Extend(ctx, tx, active.ID, credits, newEndsAt.Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("extend subscription: %w", err)
	}
	active.CreditsIncluded += credits
	active.EndsAt = newEndsAt
	return active, nil
}
