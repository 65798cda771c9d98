package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrGatewayUnavailable marks transient failures talking to the payment
// provider. No local order state is touched when initiation fails; the
// caller may simply retry checkout.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// GatewayOrder is the provider-side order created before the customer pays.
type GatewayOrder struct {
	ID string `json:"id"`
	// Amount is in minor currency units (paise).
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	// KeyID is returned so clients can open the provider's checkout widget.
	KeyID string `json:"keyId,omitempty"`
}

// Gateway creates orders with the external payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*GatewayOrder, error)
}

// Client is a Razorpay-style REST gateway client using basic auth.
type Client struct {
	http    *http.Client
	baseURL string
	keyID   string
	secret  string
}

// NewClient creates a gateway Client. baseURL is the provider API root
// without a trailing slash.
func NewClient(baseURL, keyID, secret string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		keyID:   keyID,
		secret:  secret,
	}
}

type createOrderReq struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

// CreateOrder registers an order with the provider for the given amount in
// major currency units. The amount is converted to minor units (×100) and
// payment capture is automatic.
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*GatewayOrder, error) {
	body, err := json.Marshal(createOrderReq{
		Amount:         amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		Currency:       "INR",
		Receipt:        receipt,
		PaymentCapture: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal gateway order")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a bounded amount for the error message.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrGatewayUnavailable, resp.StatusCode, snippet)
	}

	var out GatewayOrder
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}
	out.KeyID = c.keyID

	return &out, nil
}
