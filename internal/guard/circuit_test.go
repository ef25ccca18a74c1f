package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	cb := NewCircuitBreaker(3, 5*time.Second)
	result := cb.Check("razorpay:orders")
	assert.True(t, result.Allowed)
}

func TestCircuitBreaker_OpensOnThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)

	cb.RecordFailure("razorpay:orders")
	assert.True(t, cb.Check("razorpay:orders").Allowed)

	cb.RecordFailure("razorpay:orders")
	result := cb.Check("razorpay:orders")
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reason, "circuit open")
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)

	cb.RecordFailure("razorpay:payments")
	cb.RecordSuccess("razorpay:payments")
	cb.RecordFailure("razorpay:payments")

	assert.True(t, cb.Check("razorpay:payments").Allowed)
}

func TestCircuitBreaker_HalfOpenAfterReset(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	cb.RecordFailure("razorpay:orders")
	assert.False(t, cb.Check("razorpay:orders").Allowed)

	time.Sleep(20 * time.Millisecond)

	// First probe allowed, second blocked until the probe reports back.
	assert.True(t, cb.Check("razorpay:orders").Allowed)
	cb.RecordSuccess("razorpay:orders")
	assert.True(t, cb.Check("razorpay:orders").Allowed)
}

func TestCircuitBreaker_KeysAreIndependent(t *testing.T) {
	cb := NewCircuitBreaker(1, 5*time.Second)

	cb.RecordFailure("razorpay:orders")
	assert.False(t, cb.Check("razorpay:orders").Allowed)
	assert.True(t, cb.Check("razorpay:payments").Allowed)
}
