package policy

import "github.com/avatarly/payments/internal/domain"

// FeeSchedule is the immutable fee configuration injected at startup.
// Rates are basis points (1/100th of a percent) applied to the gross amount.
type FeeSchedule struct {
	PlatformFeeBps int64            `json:"platform_fee_bps"`
	GatewayFeeBps  map[string]int64 `json:"gateway_fee_bps"` // keyed by gateway name
	TaxBps         int64            `json:"tax_bps"`         // levied on the two fees, not the gross
}

// DefaultFeeSchedule returns the production fee schedule: 5% platform fee,
// 2% Razorpay fee, 18% GST on fees.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		PlatformFeeBps: 500,
		GatewayFeeBps:  map[string]int64{"razorpay": 200},
		TaxBps:         1800,
	}
}

// ComputeFees breaks a gross amount into platform fee, gateway fee, tax and
// net amount. Refund and internal credit entries carry no fees. The breakdown
// is computed once at transaction creation and never recomputed; by
// construction NetAmount + PlatformFee + GatewayFee + Tax == amount exactly.
func (s FeeSchedule) ComputeFees(amount int64, txType domain.TransactionType, gateway string) domain.FeeBreakdown {
	if txType != domain.TxPurchase || amount <= 0 {
		return domain.FeeBreakdown{NetAmount: amount}
	}

	platformFee := amount * s.PlatformFeeBps / 10_000
	gatewayFee := amount * s.GatewayFeeBps[gateway] / 10_000
	tax := (platformFee + gatewayFee) * s.TaxBps / 10_000

	return domain.FeeBreakdown{
		PlatformFee: platformFee,
		GatewayFee:  gatewayFee,
		Tax:         tax,
		NetAmount:   amount - platformFee - gatewayFee - tax,
	}
}
