package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarly/payments/internal/domain"
)

func testProvider(t *testing.T, serverURL string) *RazorpayProvider {
	t.Helper()
	p := NewRazorpayProvider("rzp_test_key", "test_key_secret", "test_webhook_secret", 2*time.Second, slog.Default())
	if serverURL != "" {
		p.baseURL = serverURL
	}
	return p
}

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyPaymentSignature(t *testing.T) {
	p := testProvider(t, "")

	t.Run("valid signature", func(t *testing.T) {
		sig := sign("order_abc|pay_xyz", "test_key_secret")
		assert.True(t, p.VerifyPaymentSignature("order_abc", "pay_xyz", sig))
	})

	t.Run("tampered payment id", func(t *testing.T) {
		sig := sign("order_abc|pay_xyz", "test_key_secret")
		assert.False(t, p.VerifyPaymentSignature("order_abc", "pay_other", sig))
	})

	t.Run("wrong secret", func(t *testing.T) {
		sig := sign("order_abc|pay_xyz", "some_other_secret")
		assert.False(t, p.VerifyPaymentSignature("order_abc", "pay_xyz", sig))
	})

	t.Run("empty signature", func(t *testing.T) {
		assert.False(t, p.VerifyPaymentSignature("order_abc", "pay_xyz", ""))
	})

	t.Run("empty secret fails closed", func(t *testing.T) {
		unset := NewRazorpayProvider("rzp_test_key", "", "", time.Second, slog.Default())
		sig := sign("order_abc|pay_xyz", "")
		assert.False(t, unset.VerifyPaymentSignature("order_abc", "pay_xyz", sig))
	})
}

func TestVerifyWebhookSignature(t *testing.T) {
	p := testProvider(t, "")
	body := []byte(`{"event":"payment.captured","payload":{}}`)

	t.Run("valid signature over raw body", func(t *testing.T) {
		sig := sign(string(body), "test_webhook_secret")
		assert.True(t, p.VerifyWebhookSignature(body, sig))
	})

	t.Run("body altered after signing", func(t *testing.T) {
		sig := sign(string(body), "test_webhook_secret")
		altered := []byte(`{"event":"payment.captured","payload":{} }`)
		assert.False(t, p.VerifyWebhookSignature(altered, sig))
	})

	t.Run("signature from payment secret rejected", func(t *testing.T) {
		sig := sign(string(body), "test_key_secret")
		assert.False(t, p.VerifyWebhookSignature(body, sig))
	})
}

func TestCreateOrder(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/orders", r.URL.Path)
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "rzp_test_key", user)
			assert.Equal(t, "test_key_secret", pass)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"order_abc","amount":49900,"currency":"INR","receipt":"rcpt_1","status":"created"}`))
		}))
		defer server.Close()

		p := testProvider(t, server.URL)
		order, err := p.CreateOrder(context.Background(), 49900, "INR", "rcpt_1")
		require.NoError(t, err)
		assert.Equal(t, "order_abc", order.ID)
		assert.Equal(t, int64(49900), order.Amount)
		assert.Equal(t, "INR", order.Currency)
	})

	t.Run("server error maps to gateway unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		p := testProvider(t, server.URL)
		_, err := p.CreateOrder(context.Background(), 49900, "INR", "rcpt_1")
		require.Error(t, err)
		appErr, ok := err.(*domain.AppError)
		require.True(t, ok)
		assert.Equal(t, "GATEWAY_UNAVAILABLE", appErr.Code)
	})

	t.Run("client error is not gateway unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"description":"amount too small"}}`))
		}))
		defer server.Close()

		p := testProvider(t, server.URL)
		_, err := p.CreateOrder(context.Background(), 1, "INR", "rcpt_1")
		require.Error(t, err)
		_, ok := err.(*domain.AppError)
		assert.False(t, ok)
	})

	t.Run("circuit opens after repeated failures", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		p := testProvider(t, server.URL)
		for i := 0; i < 5; i++ {
			_, err := p.CreateOrder(context.Background(), 49900, "INR", "rcpt_1")
			require.Error(t, err)
		}
		server.Close()
		_, err := p.CreateOrder(context.Background(), 49900, "INR", "rcpt_1")
		require.Error(t, err)
		appErr, ok := err.(*domain.AppError)
		require.True(t, ok)
		assert.Equal(t, "GATEWAY_UNAVAILABLE", appErr.Code)
	})
}

func TestFetchPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_xyz", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pay_xyz","order_id":"order_abc","amount":49900,"currency":"INR","status":"captured","method":"upi"}`))
	}))
	defer server.Close()

	p := testProvider(t, server.URL)
	payment, err := p.FetchPayment(context.Background(), "pay_xyz")
	require.NoError(t, err)
	assert.Equal(t, "pay_xyz", payment.ID)
	assert.Equal(t, "order_abc", payment.OrderID)
	assert.Equal(t, "captured", payment.Status)
}

func TestParseWebhookEvent(t *testing.T) {
	t.Run("payment captured", func(t *testing.T) {
		body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_xyz","order_id":"order_abc","amount":49900,"status":"captured"}}},"created_at":1756400000}`)
		event, err := ParseWebhookEvent(body)
		require.NoError(t, err)
		assert.Equal(t, "payment.captured", event.Event)
		assert.Equal(t, "pay_xyz", event.Payload.Payment.Entity.ID)
		assert.Equal(t, int64(49900), event.Payload.Payment.Entity.Amount)
	})

	t.Run("missing event type", func(t *testing.T) {
		_, err := ParseWebhookEvent([]byte(`{"payload":{}}`))
		assert.Error(t, err)
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := ParseWebhookEvent([]byte(`not json`))
		assert.Error(t, err)
	})
}
