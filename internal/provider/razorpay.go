package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avatarly/payments/internal/domain"
	"github.com/avatarly/payments/internal/guard"
)

const razorpayBaseURL = "https://api.razorpay.com/v1"

// Circuit breaker keys, one per gateway endpoint family.
const (
	circuitOrders   = "razorpay:orders"
	circuitPayments = "razorpay:payments"
)

// RazorpayProvider wraps the Razorpay REST API and signature verification.
type RazorpayProvider struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
	breaker       *guard.CircuitBreaker
	logger        *slog.Logger
}

// NewRazorpayProvider creates a Razorpay provider with a bounded request timeout.
func NewRazorpayProvider(keyID, keySecret, webhookSecret string, timeout time.Duration, logger *slog.Logger) *RazorpayProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RazorpayProvider{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		baseURL:       razorpayBaseURL,
		httpClient:    &http.Client{Timeout: timeout},
		breaker:       guard.NewCircuitBreaker(5, 30*time.Second),
		logger:        logger,
	}
}

// KeyID returns the public key id handed to the checkout client.
func (p *RazorpayProvider) KeyID() string { return p.keyID }

// GatewayOrder is a Razorpay order response.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// GatewayPayment is a Razorpay payment response.
type GatewayPayment struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Method      string `json:"method"`
	Email       string `json:"email"`
	Contact     string `json:"contact"`
	ErrorCode   string `json:"error_code"`
	ErrorReason string `json:"error_reason"`
}

// CreateOrder creates a remote order with auto-capture enabled. Amount is in
// minor units. Gateway errors and timeouts surface as GatewayUnavailable; no
// local state is written by this call.
func (p *RazorpayProvider) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error) {
	if check := p.breaker.Check(circuitOrders); !check.Allowed {
		return nil, domain.ErrGatewayUnavailable(fmt.Errorf("%s", check.Reason))
	}

	body, _ := json.Marshal(map[string]interface{}{
		"amount":          amount,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	})

	var order GatewayOrder
	if err := p.do(ctx, http.MethodPost, "/orders", body, &order); err != nil {
		p.breaker.RecordFailure(circuitOrders)
		return nil, err
	}
	p.breaker.RecordSuccess(circuitOrders)
	return &order, nil
}

// FetchPayment fetches a payment from the gateway; the gateway is the source
// of truth for amount and method during client-driven verification.
func (p *RazorpayProvider) FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	if check := p.breaker.Check(circuitPayments); !check.Allowed {
		return nil, domain.ErrGatewayUnavailable(fmt.Errorf("%s", check.Reason))
	}

	var payment GatewayPayment
	if err := p.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &payment); err != nil {
		p.breaker.RecordFailure(circuitPayments)
		return nil, err
	}
	p.breaker.RecordSuccess(circuitPayments)
	return &payment, nil
}

func (p *RazorpayProvider) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(p.keyID, p.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.ErrGatewayUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.ErrGatewayUnavailable(fmt.Errorf("razorpay status %d: %s", resp.StatusCode, raw))
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("razorpay error (status %d): %s", resp.StatusCode, raw)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode razorpay response: %w", err)
	}
	return nil
}

// VerifyPaymentSignature validates the signature returned to the client after
// checkout: HMAC-SHA256 over "orderID|paymentID" with the key secret. A
// mismatch returns false, never an error; an empty secret fails closed.
func (p *RazorpayProvider) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return verifyHMAC([]byte(orderID+"|"+paymentID), signature, p.keySecret)
}

// VerifyWebhookSignature validates a webhook delivery against the raw request
// body. Re-serialization can change byte layout, so callers must pass the
// bytes exactly as received.
func (p *RazorpayProvider) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	return verifyHMAC(rawBody, signature, p.webhookSecret)
}

func verifyHMAC(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookEvent is a parsed Razorpay webhook envelope.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity GatewayPayment `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
				Amount    int64  `json:"amount"`
				Status    string `json:"status"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

// ParseWebhookEvent decodes a raw webhook body into its envelope.
func ParseWebhookEvent(rawBody []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("webhook event type missing")
	}
	return &event, nil
}
