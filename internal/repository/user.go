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

type userRepo struct{}

// NewUserRepository returns a pgx-backed UserRepository.
func NewUserRepository() UserRepository {
	return &userRepo{}
}

func (r *userRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.User, error) {
	row := db.QueryRow(ctx, `
		SELECT id, credits, currency, created_at, updated_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepo) Create(ctx context.Context, db DBTX, u *domain.User) error {
	_, err := db.Exec(ctx, `
		INSERT INTO users (id, credits, currency)
		VALUES ($1, $2, $3)`,
		u.ID, infra.Int64ToNumeric(u.Credits), u.Currency)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepo) AwardCredits(ctx context.Context, db DBTX, userID uuid.UUID, amount int64) (int64, error) {
	var creditsNum pgtype.Numeric
	err := db.QueryRow(ctx, `
		UPDATE users SET credits = credits + $2, updated_at = now()
		WHERE id = $1
		RETURNING credits`,
		userID, infra.Int64ToNumeric(amount)).Scan(&creditsNum)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound("user", userID.String())
	}
	if err != nil {
		return 0, fmt.Errorf("award credits: %w", err)
	}
	return infra.NumericToInt64(creditsNum)
}

// DeductCredits is a compare-and-decrement: the balance guard lives in the
// WHERE clause, so concurrent deductions for the same user cannot underflow.
func (r *userRepo) DeductCredits(ctx context.Context, db DBTX, userID uuid.UUID, amount int64) (int64, bool, error) {
	var creditsNum pgtype.Numeric
	err := db.QueryRow(ctx, `
		UPDATE users SET credits = credits - $2, updated_at = now()
		WHERE id = $1 AND credits >= $2
		RETURNING credits`,
		userID, infra.Int64ToNumeric(amount)).Scan(&creditsNum)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("deduct credits: %w", err)
	}
	balance, convErr := infra.NumericToInt64(creditsNum)
	if convErr != nil {
		return 0, false, fmt.Errorf("convert credits: %w", convErr)
	}
	return balance, true, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var creditsNum pgtype.Numeric
	err := row.Scan(&u.ID, &creditsNum, &u.Currency, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if u.Credits, err = infra.NumericToInt64(creditsNum); err != nil {
		return nil, fmt.Errorf("convert credits: %w", err)
	}
	return &u, nil
}
