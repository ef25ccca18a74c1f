package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	t.Run("forward path allowed", func(t *testing.T) {
		assert.True(t, CanTransition(TxStatusInitiated, TxStatusProcessing))
		assert.True(t, CanTransition(TxStatusInitiated, TxStatusCompleted))
		assert.True(t, CanTransition(TxStatusInitiated, TxStatusFailed))
		assert.True(t, CanTransition(TxStatusProcessing, TxStatusCompleted))
		assert.True(t, CanTransition(TxStatusUnderReview, TxStatusCompleted))
		assert.True(t, CanTransition(TxStatusCompleted, TxStatusPartiallyRefunded))
		assert.True(t, CanTransition(TxStatusCompleted, TxStatusRefunded))
		assert.True(t, CanTransition(TxStatusPartiallyRefunded, TxStatusRefunded))
		assert.True(t, CanTransition(TxStatusCompleted, TxStatusDisputed))
	})

	t.Run("backward and repeated moves rejected", func(t *testing.T) {
		assert.False(t, CanTransition(TxStatusCompleted, TxStatusInitiated))
		assert.False(t, CanTransition(TxStatusCompleted, TxStatusProcessing))
		assert.False(t, CanTransition(TxStatusRefunded, TxStatusCompleted))
		assert.False(t, CanTransition(TxStatusInitiated, TxStatusInitiated))
		assert.False(t, CanTransition(TxStatusProcessing, TxStatusUnderReview))
	})

	t.Run("failed is terminal", func(t *testing.T) {
		assert.False(t, CanTransition(TxStatusFailed, TxStatusCompleted))
		assert.False(t, CanTransition(TxStatusFailed, TxStatusRefunded))
		assert.False(t, CanTransition(TxStatusFailed, TxStatusProcessing))
	})

	t.Run("unknown statuses rejected", func(t *testing.T) {
		assert.False(t, CanTransition("bogus", TxStatusCompleted))
		assert.False(t, CanTransition(TxStatusInitiated, "bogus"))
	})
}

func TestCatalogResolve(t *testing.T) {
	catalog := DefaultCatalog()

	t.Run("fixed packages", func(t *testing.T) {
		credits, amount, err := catalog.Resolve("pro", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(100), credits)
		assert.Equal(t, int64(49900), amount)
	})

	t.Run("custom credits at per-credit rate", func(t *testing.T) {
		credits, amount, err := catalog.Resolve("", 50)
		require.NoError(t, err)
		assert.Equal(t, int64(50), credits)
		assert.Equal(t, int64(50*599), amount)
	})

	t.Run("unknown package", func(t *testing.T) {
		_, _, err := catalog.Resolve("mega", 0)
		require.Error(t, err)
		appErr, ok := err.(*AppError)
		require.True(t, ok)
		assert.Equal(t, "INVALID_PACKAGE", appErr.Code)
	})

	t.Run("non-positive custom credits", func(t *testing.T) {
		_, _, err := catalog.Resolve("", 0)
		assert.Error(t, err)
		_, _, err = catalog.Resolve("", -5)
		assert.Error(t, err)
	})
}

func TestRefundable(t *testing.T) {
	cases := []struct {
		name   string
		tx     Transaction
		expect bool
	}{
		{"completed purchase", Transaction{Type: TxPurchase, Status: TxStatusCompleted}, true},
		{"partially refunded purchase", Transaction{Type: TxPurchase, Status: TxStatusPartiallyRefunded}, true},
		{"pending purchase", Transaction{Type: TxPurchase, Status: TxStatusInitiated}, false},
		{"fully refunded purchase", Transaction{Type: TxPurchase, Status: TxStatusRefunded}, false},
		{"failed purchase", Transaction{Type: TxPurchase, Status: TxStatusFailed}, false},
		{"completed spend", Transaction{Type: TxCreditSpend, Status: TxStatusCompleted}, false},
		{"completed refund", Transaction{Type: TxRefund, Status: TxStatusCompleted}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.tx.Refundable())
		})
	}
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateCurrency("INR"))
	assert.NoError(t, ValidateCurrency("USD"))
	assert.Error(t, ValidateCurrency("inr"))
	assert.Error(t, ValidateCurrency("RUPEES"))
	assert.Error(t, ValidateCurrency(""))

	assert.NoError(t, ValidatePositiveAmount(1))
	assert.Error(t, ValidatePositiveAmount(0))
	assert.Error(t, ValidatePositiveAmount(-100))
}

func TestParsePurchaseMetadata(t *testing.T) {
	t.Run("round-trips the order document", func(t *testing.T) {
		meta, err := ParsePurchaseMetadata(json.RawMessage(`{"package_type":"pro","credits":100,"risk_flags":["high_amount"]}`))
		require.NoError(t, err)
		assert.Equal(t, "pro", meta.PackageType)
		assert.Equal(t, int64(100), meta.Credits)
		assert.Equal(t, []string{"high_amount"}, meta.RiskFlags)
	})

	t.Run("empty document is an error, not zero credits", func(t *testing.T) {
		_, err := ParsePurchaseMetadata(nil)
		assert.Error(t, err)
	})

	t.Run("malformed document is an error", func(t *testing.T) {
		_, err := ParsePurchaseMetadata(json.RawMessage(`{"credits":"broken"}`))
		assert.Error(t, err)
	})
}
