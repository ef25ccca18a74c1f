package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus tracks the purchase intent lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment represents a payments table row: one purchase intent against the
// gateway. gateway_order_id is unique; a payment leaves PENDING exactly once.
// UserID is nil only for failure stubs recorded from gateway webhooks that
// reference an order this service never created.
type Payment struct {
	ID               uuid.UUID       `json:"id"`
	UserID           *uuid.UUID      `json:"user_id,omitempty"`
	GatewayOrderID   string          `json:"gateway_order_id"`
	GatewayPaymentID *string         `json:"gateway_payment_id,omitempty"`
	Amount           int64           `json:"amount"`
	Currency         string          `json:"currency"`
	Status           PaymentStatus   `json:"status"`
	Credits          int64           `json:"credits"`
	FailureReason    *string         `json:"failure_reason,omitempty"`
	Metadata         json.RawMessage `json:"metadata"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// PurchaseMetadata is the JSON document stored on purchase payments and their
// ledger transactions. Refunds read Credits back out of it to size the
// claw-back, so it must round-trip losslessly.
type PurchaseMetadata struct {
	PackageType string   `json:"package_type"`
	Credits     int64    `json:"credits"`
	RiskFlags   []string `json:"risk_flags,omitempty"`
}

// ParsePurchaseMetadata decodes the metadata document written at order
// creation. An empty or malformed document is an error, not a zero value:
// callers that size refunds off Credits must not silently treat a decode
// failure as "no credits purchased".
func ParsePurchaseMetadata(raw json.RawMessage) (*PurchaseMetadata, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("purchase metadata is empty")
	}
	var meta PurchaseMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode purchase metadata: %w", err)
	}
	return &meta, nil
}

// CreditPackage is one entry of the fixed package table.
type CreditPackage struct {
	Key      string `json:"key"`
	Credits  int64  `json:"credits"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
}

// PackageCatalog is the immutable package table injected at startup.
type PackageCatalog struct {
	Packages      map[string]CreditPackage
	PerCreditRate int64 // minor units per custom credit
}

// DefaultCatalog returns the production package table.
func DefaultCatalog() PackageCatalog {
	return PackageCatalog{
		Packages: map[string]CreditPackage{
			"starter": {Key: "starter", Credits: 30, Amount: 19900, Currency: "INR"},
			"pro":     {Key: "pro", Credits: 100, Amount: 49900, Currency: "INR"},
			"studio":  {Key: "studio", Credits: 300, Amount: 119900, Currency: "INR"},
		},
		PerCreditRate: 599,
	}
}

// Resolve maps a package key or custom credit count to credits and price.
// Exactly one of packageKey / customCredits must be set.
func (c PackageCatalog) Resolve(packageKey string, customCredits int64) (credits, amount int64, err error) {
	if packageKey != "" {
		pkg, ok := c.Packages[packageKey]
		if !ok {
			return 0, 0, ErrInvalidPackage(packageKey)
		}
		return pkg.Credits, pkg.Amount, nil
	}
	if customCredits <= 0 {
		return 0, 0, ErrValidation("credits must be positive")
	}
	return customCredits, customCredits * c.PerCreditRate, nil
}
