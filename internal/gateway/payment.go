package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PreauthResult carries the gateway correlation for a successful hold
type PreauthResult struct {
	AuthorizationCode string `json:"authorization_code"`
	TransactionID     string `json:"transaction_id"`
}

// CaptureResult carries the gateway correlation for a captured payment
type CaptureResult struct {
	CaptureCode string `json:"capture_code"`
}

// RefundResult carries the gateway correlation for a refund
type RefundResult struct {
	RefundID string `json:"refund_id"`
}

// PaymentGateway is the order-facing contract with the payment provider.
// Every call is idempotent on its idempotency key: a retried call with the
// same key must not move funds a second time.
type PaymentGateway interface {
	Preauthorize(ctx context.Context, amountCents int64, paymentToken, idempotencyKey string) (*PreauthResult, error)
	Capture(ctx context.Context, authCode, idempotencyKey string) (*CaptureResult, error)
	Void(ctx context.Context, authCode, idempotencyKey string) error
	Refund(ctx context.Context, captureCode string, amountCents int64, idempotencyKey string) (*RefundResult, error)
}

// HTTPPaymentGateway talks to the payment provider over HTTP
type HTTPPaymentGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPPaymentGateway creates a gateway client for the given base URL
func NewHTTPPaymentGateway(baseURL string, timeout time.Duration) *HTTPPaymentGateway {
	return &HTTPPaymentGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *HTTPPaymentGateway) post(ctx context.Context, path, idempotencyKey string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Preauthorize reserves funds on the payment instrument without transferring them
func (g *HTTPPaymentGateway) Preauthorize(ctx context.Context, amountCents int64, paymentToken, idempotencyKey string) (*PreauthResult, error) {
	body := map[string]interface{}{
		"amount_cents":  amountCents,
		"payment_token": paymentToken,
	}
	var result PreauthResult
	if err := g.post(ctx, "/preauthorizations", idempotencyKey, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Capture converts a pre-authorization into an actual funds transfer
func (g *HTTPPaymentGateway) Capture(ctx context.Context, authCode, idempotencyKey string) (*CaptureResult, error) {
	body := map[string]interface{}{
		"authorization_code": authCode,
	}
	var result CaptureResult
	if err := g.post(ctx, "/captures", idempotencyKey, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Void releases a pre-authorization without transferring funds
func (g *HTTPPaymentGateway) Void(ctx context.Context, authCode, idempotencyKey string) error {
	body := map[string]interface{}{
		"authorization_code": authCode,
	}
	return g.post(ctx, "/voids", idempotencyKey, body, nil)
}

// Refund returns captured funds to the customer
func (g *HTTPPaymentGateway) Refund(ctx context.Context, captureCode string, amountCents int64, idempotencyKey string) (*RefundResult, error) {
	body := map[string]interface{}{
		"capture_code": captureCode,
		"amount_cents": amountCents,
	}
	var result RefundResult
	if err := g.post(ctx, "/refunds", idempotencyKey, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
