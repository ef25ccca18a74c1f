package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/avatarly/payments/internal/domain"
	"github.com/avatarly/payments/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type subscriptionRepo struct{}

// NewSubscriptionRepository returns a pgx-backed SubscriptionRepository.
func NewSubscriptionRepository() SubscriptionRepository {
	return &subscriptionRepo{}
}

// FindActiveByUser locks the row so a concurrent completion for the same user
// cannot open a second active subscription.
func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Subscription, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, user_id, package_type, status, credits_included, credits_used,
		       starts_at, ends_at, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1 AND status = $2
		FOR UPDATE`, userID, string(domain.SubscriptionActive))
	return scanSubscription(row)
}

func (r *subscriptionRepo) Create(ctx context.Context, db DBTX, s *domain.Subscription) error {
	_, err := db.Exec(ctx, `
		INSERT INTO subscriptions
		  (id, user_id, package_type, status, credits_included, credits_used, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.PackageType, string(s.Status),
		infra.Int64ToNumeric(s.CreditsIncluded), infra.Int64ToNumeric(s.CreditsUsed),
		s.StartsAt, s.EndsAt)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepo) Extend(ctx context.Context, db DBTX, id uuid.UUID, addCredits int64, newEndsAt string) error {
	_, err := db.Exec(ctx, `
		UPDATE subscriptions
		SET credits_included = credits_included + $2, ends_at = $3::timestamptz, updated_at = now()
		WHERE id = $1`,
		id, infra.Int64ToNumeric(addCredits), newEndsAt)
	if err != nil {
		return fmt.Errorf("extend subscription: %w", err)
	}
	return nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	var includedNum, usedNum pgtype.Numeric
	err := row.Scan(&s.ID, &s.UserID, &s.PackageType, &s.Status,
		&includedNum, &usedNum, &s.StartsAt, &s.EndsAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	if s.CreditsIncluded, err = infra.NumericToInt64(includedNum); err != nil {
		return nil, fmt.Errorf("convert credits_included: %w", err)
	}
	if s.CreditsUsed, err = infra.NumericToInt64(usedNum); err != nil {
		return nil, fmt.Errorf("convert credits_used: %w", err)
	}
	return &s, nil
}
