//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarly/payments/internal/auth"
	"github.com/avatarly/payments/test/integration/testutil"
)

// completePurchase runs a full order → capture → verify cycle and returns the
// purchase's transaction id (the gateway order id).
func completePurchase(t *testing.T, env *testutil.TestEnv, token, packageType string) string {
	t.Helper()
	resp := env.POST("/payments/create-order", map[string]interface{}{"package_type": packageType}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order orderResponse
	env.Decode(resp, &order)

	paymentID := env.Gateway.Capture(order.GatewayOrderID)
	resp = env.POST("/payments/verify", map[string]string{
		"gateway_order_id":   order.GatewayOrderID,
		"gateway_payment_id": paymentID,
		"signature":          testutil.SignPayment(order.GatewayOrderID, paymentID),
	}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	return order.GatewayOrderID
}

type refundResponse struct {
	Refund struct {
		TransactionID string `json:"transaction_id"`
		Amount        int64  `json:"amount"`
		Status        string `json:"status"`
	} `json:"refund"`
	CreditsRecovered int64  `json:"credits_recovered"`
	CreditShortfall  int64  `json:"credit_shortfall"`
	ParentStatus     string `json:"parent_status"`
}

func TestRefunds(t *testing.T) {
	env := testutil.NewTestEnv(t)
	adminToken := env.Token(uuid.New(), auth.RealmAdmin)

	t.Run("full refund reverses credits and marks parent refunded", func(t *testing.T) {
		userID, token := env.NewUser(0)
		orderID := completePurchase(t, env, token, "pro")
		require.Equal(t, int64(100), env.Credits(userID))

		resp := env.POST("/payments/refund", map[string]interface{}{
			"transaction_id": orderID,
			"reason":         "customer request",
		}, adminToken)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var result refundResponse
		env.Decode(resp, &result)
		assert.Equal(t, int64(49900), result.Refund.Amount)
		assert.Equal(t, int64(100), result.CreditsRecovered)
		assert.Equal(t, int64(0), result.CreditShortfall)
		assert.Equal(t, "refunded", result.ParentStatus)
		assert.Equal(t, int64(0), env.Credits(userID))
	})

	t.Run("partial then final refund, cumulative bound enforced", func(t *testing.T) {
		env.CleanAll()
		userID, token := env.NewUser(0)
		orderID := completePurchase(t, env, token, "pro")

		resp := env.POST("/payments/refund", map[string]interface{}{
			"transaction_id": orderID,
			"amount":         24950,
		}, adminToken)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var first refundResponse
		env.Decode(resp, &first)
		assert.Equal(t, "partially_refunded", first.ParentStatus)
		assert.Equal(t, int64(50), first.CreditsRecovered)
		assert.Equal(t, int64(50), env.Credits(userID))

		// Over-refund of the remainder is rejected.
		resp = env.POST("/payments/refund", map[string]interface{}{
			"transaction_id": orderID,
			"amount":         30000,
		}, adminToken)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		// The exact remainder closes it out.
		resp = env.POST("/payments/refund", map[string]interface{}{
			"transaction_id": orderID,
			"amount":         24950,
		}, adminToken)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var second refundResponse
		env.Decode(resp, &second)
		assert.Equal(t, "refunded", second.ParentStatus)
		assert.Equal(t, int64(0), env.Credits(userID))

		// Nothing left to refund.
		resp = env.POST("/payments/refund", map[string]interface{}{
			"transaction_id": orderID,
		}, adminToken)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("clamp at zero flags reconciliation", func(t *testing.T) {
		env.CleanAll()
		userID, token := env.NewUser(0)
		orderID := completePurchase(t, env, token, "pro")

		// User spends most of the purchased credits before the refund.
		resp := env.POST("/credits/spend", map[string]interface{}{
			"amount":         80,
			"transaction_id": "gen_job_pre_refund",
		}, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = env.POST("/payments/refund", map[string]interface{}{
			"transaction_id": orderID,
			"reason":         "chargeback",
		}, adminToken)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var result refundResponse
		env.Decode(resp, &result)
		assert.Equal(t, int64(20), result.CreditsRecovered)
		assert.Equal(t, int64(80), result.CreditShortfall)
		assert.Equal(t, int64(0), env.Credits(userID))

		var reconEvents int
		err := env.Pool.QueryRow(t.Context(),
			`SELECT count(*) FROM event_outbox WHERE "eventType" = 'payments.reconciliation.required'`).Scan(&reconEvents)
		require.NoError(t, err)
		assert.Equal(t, 1, reconEvents)
	})

	t.Run("refund of non-purchase rejected", func(t *testing.T) {
		env.CleanAll()
		_, token := env.NewUser(100)
		resp := env.POST("/credits/spend", map[string]interface{}{
			"amount":         10,
			"transaction_id": "gen_job_x",
		}, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = env.POST("/payments/refund", map[string]interface{}{
			"transaction_id": "gen_job_x",
		}, adminToken)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("refund of pending purchase rejected", func(t *testing.T) {
		env.CleanAll()
		_, token := env.NewUser(0)
		resp := env.POST("/payments/create-order", map[string]interface{}{"package_type": "starter"}, token)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var order orderResponse
		env.Decode(resp, &order)

		resp = env.POST("/payments/refund", map[string]interface{}{
			"transaction_id": order.GatewayOrderID,
		}, adminToken)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("user token cannot refund", func(t *testing.T) {
		_, token := env.NewUser(0)
		resp := env.POST("/payments/refund", map[string]interface{}{
			"transaction_id": "whatever",
		}, token)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

// TestConcurrentRefundsBound fires two refunds at the same purchase at once.
// The parent row lock serializes them, so the second sees the first's amount
// and the cumulative total can never exceed the purchase.
func TestConcurrentRefundsBound(t *testing.T) {
	env := testutil.NewTestEnv(t)
	adminToken := env.Token(uuid.New(), auth.RealmAdmin)
	_, token := env.NewUser(0)
	orderID := completePurchase(t, env, token, "pro")

	body, err := json.Marshal(map[string]interface{}{
		"transaction_id": orderID,
		"amount":         30000,
		"reason":         "duplicate charge",
	})
	require.NoError(t, err)

	type outcome struct {
		status int
		err    error
	}
	results := make(chan outcome, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, env.Server.URL+"/payments/refund", bytes.NewReader(body))
			if err != nil {
				results <- outcome{err: err}
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+adminToken)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				results <- outcome{err: err}
				return
			}
			resp.Body.Close()
			results <- outcome{status: resp.StatusCode}
		}()
	}
	wg.Wait()
	close(results)

	var created, rejected int
	for res := range results {
		require.NoError(t, res.err)
		switch res.status {
		case http.StatusCreated:
			created++
		case http.StatusUnprocessableEntity:
			rejected++
		default:
			t.Fatalf("unexpected refund status %d", res.status)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, rejected)

	var refunded int64
	require.NoError(t, env.Pool.QueryRow(t.Context(), `
		SELECT COALESCE(SUM(amount), 0)::bigint FROM transactions
		WHERE type = 'refund' AND status = 'completed'`).Scan(&refunded))
	assert.Equal(t, int64(30000), refunded)
}

func TestRefundMetadataGuard(t *testing.T) {
	env := testutil.NewTestEnv(t)
	adminToken := env.Token(uuid.New(), auth.RealmAdmin)
	userID, token := env.NewUser(0)
	orderID := completePurchase(t, env, token, "pro")
	require.Equal(t, int64(100), env.Credits(userID))

	t.Run("undecodable metadata blocks the refund", func(t *testing.T) {
		_, err := env.Pool.Exec(t.Context(),
			`UPDATE transactions SET metadata = '{"credits": "broken"}' WHERE transaction_id = $1`, orderID)
		require.NoError(t, err)

		resp := env.POST("/payments/refund", map[string]interface{}{
			"transaction_id": orderID,
		}, adminToken)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, int64(100), env.Credits(userID))
	})

	t.Run("metadata without a credit count blocks the refund", func(t *testing.T) {
		_, err := env.Pool.Exec(t.Context(),
			`UPDATE transactions SET metadata = '{}' WHERE transaction_id = $1`, orderID)
		require.NoError(t, err)

		resp := env.POST("/payments/refund", map[string]interface{}{
			"transaction_id": orderID,
		}, adminToken)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, int64(100), env.Credits(userID))
	})

	t.Run("no refund row was written", func(t *testing.T) {
		var count int
		require.NoError(t, env.Pool.QueryRow(t.Context(),
			`SELECT count(*) FROM transactions WHERE type = 'refund'`).Scan(&count))
		assert.Zero(t, count)
	})
}
