package policy

import "time"

// RiskSignals holds the raw inputs for transaction risk evaluation.
type RiskSignals struct {
	Amount         int64     `json:"amount"`          // gross amount, minor units
	Country        string    `json:"country"`         // ISO 3166-1 alpha-2, may be empty
	AccountAgeDays int       `json:"account_age_days"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// RiskResult holds the evaluated risk.
type RiskResult struct {
	Score int      `json:"score"` // 0..100
	Flags []string `json:"flags,omitempty"`
}

// geoDenylist holds countries where the gateway cannot settle; transactions
// from them are flagged heavily rather than rejected outright.
var geoDenylist = map[string]bool{
	"KP": true,
	"IR": true,
	"SY": true,
	"CU": true,
}

// Amount thresholds in minor units.
const (
	riskAmountHigh     = 500_000 // ₹5,000
	riskAmountElevated = 100_000 // ₹1,000
)

// AssessRisk computes a deterministic, side-effect-free risk score for a
// transaction from its signals. The score is a weighted sum capped at 100.
func AssessRisk(signals RiskSignals) RiskResult {
	var score int
	var flags []string

	if signals.Amount >= riskAmountHigh {
		score += 30
		flags = append(flags, "high_amount")
	} else if signals.Amount >= riskAmountElevated {
		score += 15
		flags = append(flags, "elevated_amount")
	}

	if geoDenylist[signals.Country] {
		score += 40
		flags = append(flags, "geo_denylist")
	}

	if signals.AccountAgeDays < 7 {
		score += 20
		flags = append(flags, "new_account")
	}

	// Fraudulent card testing clusters in the dead hours.
	hour := signals.OccurredAt.UTC().Hour()
	if hour >= 0 && hour < 5 {
		score += 10
		flags = append(flags, "off_hours")
	}

	if score > 100 {
		score = 100
	}

	return RiskResult{Score: score, Flags: flags}
}

// ReviewThreshold is the score at or above which a transaction is routed to
// UNDER_REVIEW instead of straight-through processing.
const ReviewThreshold = 60
