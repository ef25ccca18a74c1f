package policy

// PurchaseLimitPolicy defines per-user purchase limits.
type PurchaseLimitPolicy struct {
	SingleTransactionMax int64 `json:"single_transaction_max"` // minor units
	DailyPurchaseMax     int64 `json:"daily_purchase_max"`     // minor units
}

// DefaultPurchaseLimits returns the default limits (₹10k single, ₹25k daily).
func DefaultPurchaseLimits() PurchaseLimitPolicy {
	return PurchaseLimitPolicy{
		SingleTransactionMax: 1_000_000,
		DailyPurchaseMax:     2_500_000,
	}
}

// LimitEvaluation holds the result of a purchase limits check.
type LimitEvaluation struct {
	Allowed       bool   `json:"allowed"`
	BreachedLimit string `json:"breached_limit,omitempty"`
	LimitValue    int64  `json:"limit_value,omitempty"`
	RequestedAmt  int64  `json:"requested_amount,omitempty"`
}

// EvaluatePurchaseLimits checks a purchase amount against the user's limits.
// dailyPurchases is the running total for the current UTC day.
func EvaluatePurchaseLimits(policy PurchaseLimitPolicy, amount, dailyPurchases int64) LimitEvaluation {
	if policy.SingleTransactionMax > 0 && amount > policy.SingleTransactionMax {
		return LimitEvaluation{
			Allowed:       false,
			BreachedLimit: "single_transaction",
			LimitValue:    policy.SingleTransactionMax,
			RequestedAmt:  amount,
		}
	}

	if policy.DailyPurchaseMax > 0 && dailyPurchases+amount > policy.DailyPurchaseMax {
		return LimitEvaluation{
			Allowed:       false,
			BreachedLimit: "daily_purchase",
			LimitValue:    policy.DailyPurchaseMax,
			RequestedAmt:  dailyPurchases + amount,
		}
	}

	return LimitEvaluation{Allowed: true}
}
