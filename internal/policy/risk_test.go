package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func noon() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestAssessRisk_Baseline(t *testing.T) {
	result := AssessRisk(RiskSignals{
		Amount:         19900,
		Country:        "IN",
		AccountAgeDays: 400,
		OccurredAt:     noon(),
	})
	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.Flags)
}

func TestAssessRisk_HighAmount(t *testing.T) {
	result := AssessRisk(RiskSignals{Amount: 600_000, AccountAgeDays: 30, OccurredAt: noon()})
	assert.Equal(t, 30, result.Score)
	assert.Contains(t, result.Flags, "high_amount")
}

func TestAssessRisk_ElevatedAmount(t *testing.T) {
	result := AssessRisk(RiskSignals{Amount: 119900, AccountAgeDays: 30, OccurredAt: noon()})
	assert.Equal(t, 15, result.Score)
	assert.Contains(t, result.Flags, "elevated_amount")
}

func TestAssessRisk_GeoDenylist(t *testing.T) {
	result := AssessRisk(RiskSignals{Amount: 19900, Country: "KP", AccountAgeDays: 30, OccurredAt: noon()})
	assert.Equal(t, 40, result.Score)
	assert.Contains(t, result.Flags, "geo_denylist")
}

func TestAssessRisk_NewAccount(t *testing.T) {
	result := AssessRisk(RiskSignals{Amount: 19900, AccountAgeDays: 2, OccurredAt: noon()})
	assert.Equal(t, 20, result.Score)
	assert.Contains(t, result.Flags, "new_account")
}

func TestAssessRisk_OffHours(t *testing.T) {
	at := time.Date(2025, 6, 15, 3, 30, 0, 0, time.UTC)
	result := AssessRisk(RiskSignals{Amount: 19900, AccountAgeDays: 30, OccurredAt: at})
	assert.Equal(t, 10, result.Score)
	assert.Contains(t, result.Flags, "off_hours")
}

func TestAssessRisk_CappedAt100(t *testing.T) {
	at := time.Date(2025, 6, 15, 1, 0, 0, 0, time.UTC)
	result := AssessRisk(RiskSignals{
		Amount:         10_000_000,
		Country:        "IR",
		AccountAgeDays: 0,
		OccurredAt:     at,
	})
	assert.Equal(t, 100, result.Score)
}

func TestAssessRisk_Deterministic(t *testing.T) {
	signals := RiskSignals{Amount: 500_000, Country: "SY", AccountAgeDays: 3, OccurredAt: noon()}
	first := AssessRisk(signals)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, AssessRisk(signals))
	}
}

func TestAssessRisk_ReviewThresholdReached(t *testing.T) {
	// Denylist country plus fresh account crosses the review line.
	result := AssessRisk(RiskSignals{Amount: 19900, Country: "CU", AccountAgeDays: 1, OccurredAt: noon()})
	assert.GreaterOrEqual(t, result.Score, ReviewThreshold)
}
