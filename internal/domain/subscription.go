package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus tracks a credits-included package window.
type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

// Subscription represents a subscriptions table row. A partial unique index
// guarantees at most one active subscription per user.
type Subscription struct {
	ID              uuid.UUID          `json:"id"`
	UserID          uuid.UUID          `json:"user_id"`
	PackageType     string             `json:"package_type"`
	Status          SubscriptionStatus `json:"status"`
	CreditsIncluded int64              `json:"credits_included"`
	CreditsUsed     int64              `json:"credits_used"`
	StartsAt        time.Time          `json:"starts_at"`
	EndsAt          time.Time          `json:"ends_at"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}
