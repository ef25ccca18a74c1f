package policy

import (
	"testing"

	"github.com/avatarly/payments/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestComputeFees_ProPackage(t *testing.T) {
	s := DefaultFeeSchedule()
	fees := s.ComputeFees(49900, domain.TxPurchase, "razorpay")

	assert.Equal(t, int64(2495), fees.PlatformFee) // 5%
	assert.Equal(t, int64(998), fees.GatewayFee)   // 2%
	assert.Equal(t, int64(628), fees.Tax)          // 18% of fees, truncated
	assert.Equal(t, int64(45779), fees.NetAmount)
}

func TestComputeFees_BreakdownSumsToAmount(t *testing.T) {
	s := DefaultFeeSchedule()
	amounts := []int64{1, 99, 599, 19900, 49900, 119900, 1_000_000, 999_999_999}
	for _, amount := range amounts {
		fees := s.ComputeFees(amount, domain.TxPurchase, "razorpay")
		sum := fees.NetAmount + fees.PlatformFee + fees.GatewayFee + fees.Tax
		assert.Equal(t, amount, sum, "amount: %d", amount)
		assert.GreaterOrEqual(t, fees.NetAmount, int64(0), "amount: %d", amount)
	}
}

func TestComputeFees_RefundCarriesNoFees(t *testing.T) {
	s := DefaultFeeSchedule()
	fees := s.ComputeFees(24950, domain.TxRefund, "razorpay")

	assert.Zero(t, fees.PlatformFee)
	assert.Zero(t, fees.GatewayFee)
	assert.Zero(t, fees.Tax)
	assert.Equal(t, int64(24950), fees.NetAmount)
}

func TestComputeFees_InternalCreditEntries(t *testing.T) {
	s := DefaultFeeSchedule()
	for _, txType := range []domain.TransactionType{domain.TxCreditAward, domain.TxCreditSpend, domain.TxAdjustment} {
		fees := s.ComputeFees(100, txType, "razorpay")
		assert.Equal(t, int64(100), fees.NetAmount, "type: %s", txType)
		assert.Zero(t, fees.PlatformFee+fees.GatewayFee+fees.Tax, "type: %s", txType)
	}
}

func TestComputeFees_UnknownGateway(t *testing.T) {
	s := DefaultFeeSchedule()
	fees := s.ComputeFees(10000, domain.TxPurchase, "unknown")

	// No gateway rate configured means no gateway fee, arithmetic still holds.
	assert.Zero(t, fees.GatewayFee)
	assert.Equal(t, int64(10000), fees.NetAmount+fees.PlatformFee+fees.Tax)
}
