package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluatePurchaseLimits_Allowed(t *testing.T) {
	result := EvaluatePurchaseLimits(DefaultPurchaseLimits(), 49900, 0)
	assert.True(t, result.Allowed)
	assert.Empty(t, result.BreachedLimit)
}

func TestEvaluatePurchaseLimits_SingleTransactionBreach(t *testing.T) {
	result := EvaluatePurchaseLimits(DefaultPurchaseLimits(), 1_500_000, 0)
	assert.False(t, result.Allowed)
	assert.Equal(t, "single_transaction", result.BreachedLimit)
	assert.Equal(t, int64(1_000_000), result.LimitValue)
}

func TestEvaluatePurchaseLimits_DailyBreach(t *testing.T) {
	result := EvaluatePurchaseLimits(DefaultPurchaseLimits(), 200_000, 2_400_000)
	assert.False(t, result.Allowed)
	assert.Equal(t, "daily_purchase", result.BreachedLimit)
	assert.Equal(t, int64(2_600_000), result.RequestedAmt)
}

func TestEvaluatePurchaseLimits_ExactlyAtLimit(t *testing.T) {
	policy := PurchaseLimitPolicy{SingleTransactionMax: 100_000, DailyPurchaseMax: 200_000}
	result := EvaluatePurchaseLimits(policy, 100_000, 100_000)
	assert.True(t, result.Allowed)
}

func TestEvaluatePurchaseLimits_ZeroLimitsDisabled(t *testing.T) {
	result := EvaluatePurchaseLimits(PurchaseLimitPolicy{}, 10_000_000, 10_000_000)
	assert.True(t, result.Allowed)
}
