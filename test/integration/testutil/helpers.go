//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/avatarly/payments/internal/auth"
)

// NewUser seeds a user balance row and returns its id plus a user token.
func (env *TestEnv) NewUser(credits int64) (uuid.UUID, string) {
	env.t.Helper()
	id := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := env.Pool.Exec(ctx,
		`INSERT INTO users (id, credits, currency) VALUES ($1, $2, 'INR')`, id, credits)
	if err != nil {
		env.t.Fatalf("NewUser: %v", err)
	}
	return id, env.Token(id, auth.RealmUser)
}

// Token mints a token for the given user and realm.
func (env *TestEnv) Token(userID uuid.UUID, realm string) string {
	env.t.Helper()
	token, err := env.JWTMgr.Issue(userID, realm)
	if err != nil {
		env.t.Fatalf("Token: %v", err)
	}
	return token
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest(http.MethodGet, env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("AuthGET %s: new request: %v", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("AuthGET %s: %v", path, err)
	}
	return resp
}

// POST performs a JSON POST with optional auth token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("POST %s: encode: %v", path, err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("POST %s: new request: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// Webhook delivers a raw body to the webhook endpoint with the given
// signature header.
func (env *TestEnv) Webhook(body []byte, signature string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest(http.MethodPost, env.Server.URL+"/payments/webhook", bytes.NewReader(body))
	if err != nil {
		env.t.Fatalf("Webhook: new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Razorpay-Signature", signature)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("Webhook: %v", err)
	}
	return resp
}

// Decode parses a JSON response body into dst and closes the body.
func (env *TestEnv) Decode(resp *http.Response, dst interface{}) {
	env.t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		env.t.Fatalf("decode response: %v", err)
	}
}

// Credits reads a user's balance straight from the database.
func (env *TestEnv) Credits(userID uuid.UUID) int64 {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var credits int64
	if err := env.Pool.QueryRow(ctx,
		`SELECT credits::bigint FROM users WHERE id = $1`, userID).Scan(&credits); err != nil {
		env.t.Fatalf("Credits: %v", err)
	}
	return credits
}

// CapturedWebhookBody builds a payment.captured delivery for an order.
func CapturedWebhookBody(orderID, paymentID string, amount int64) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"event": "payment.captured",
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":       paymentID,
					"order_id": orderID,
					"amount":   amount,
					"currency": "INR",
					"status":   "captured",
				},
			},
		},
		"created_at": time.Now().Unix(),
	})
	return body
}

// FailedWebhookBody builds a payment.failed delivery for an order.
func FailedWebhookBody(orderID, paymentID, reason string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"event": "payment.failed",
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":           paymentID,
					"order_id":     orderID,
					"status":       "failed",
					"error_reason": reason,
				},
			},
		},
		"created_at": time.Now().Unix(),
	})
	return body
}
