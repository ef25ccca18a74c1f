//go:build integration

package testutil

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/avatarly/payments/internal/provider"
)

// StubGateway stands in for Razorpay. Signatures use the real HMAC scheme so
// verification paths run unmodified; orders and payments live in memory.
type StubGateway struct {
	mu       sync.Mutex
	seq      int
	orders   map[string]*provider.GatewayOrder
	payments map[string]*provider.GatewayPayment

	// FailCreateOrder makes CreateOrder return an error when set.
	FailCreateOrder error
}

func NewStubGateway() *StubGateway {
	return &StubGateway{
		orders:   map[string]*provider.GatewayOrder{},
		payments: map[string]*provider.GatewayPayment{},
	}
}

func (g *StubGateway) KeyID() string { return "rzp_test_stub" }

func (g *StubGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*provider.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailCreateOrder != nil {
		return nil, g.FailCreateOrder
	}
	g.seq++
	order := &provider.GatewayOrder{
		ID:       fmt.Sprintf("order_stub%06d", g.seq),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}
	g.orders[order.ID] = order
	return order, nil
}

func (g *StubGateway) FetchPayment(_ context.Context, paymentID string) (*provider.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	payment, ok := g.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("razorpay error (status 404): payment %s not found", paymentID)
	}
	return payment, nil
}

// Capture simulates the customer paying: it registers a captured payment
// against the order and returns its id.
func (g *StubGateway) Capture(orderID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	order := g.orders[orderID]
	g.seq++
	payment := &provider.GatewayPayment{
		ID:       fmt.Sprintf("pay_stub%06d", g.seq),
		OrderID:  orderID,
		Status:   "captured",
		Method:   "upi",
		Currency: "INR",
	}
	if order != nil {
		payment.Amount = order.Amount
	}
	g.payments[payment.ID] = payment
	return payment.ID
}

// RegisterPayment installs an arbitrary payment record, for mismatch cases.
func (g *StubGateway) RegisterPayment(p *provider.GatewayPayment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[p.ID] = p
}

func (g *StubGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return hmacEqual([]byte(orderID+"|"+paymentID), signature, TestKeySecret)
}

func (g *StubGateway) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	return hmacEqual(rawBody, signature, TestWebhookSecret)
}

// SignPayment produces the client verification signature for a payment.
func SignPayment(orderID, paymentID string) string {
	return hmacHex([]byte(orderID+"|"+paymentID), TestKeySecret)
}

// SignWebhook produces the delivery signature over a raw body.
func SignWebhook(body []byte) string {
	return hmacHex(body, TestWebhookSecret)
}

func hmacHex(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func hmacEqual(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(hmacHex(payload, secret)), []byte(signature))
}
