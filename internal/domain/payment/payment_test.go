package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier([]byte("test-secret"))

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte("order_123|pay_456"))
	goodSig := hex.EncodeToString(mac.Sum(nil))

	require.NoError(t, v.Verify("order_123", "pay_456", goodSig))
}

func TestVerifier_SignMatchesVerify(t *testing.T) {
	v := NewVerifier([]byte("s3cret"))
	sig := v.Sign("order_a", "pay_b")
	require.NoError(t, v.Verify("order_a", "pay_b", sig))
}

func TestVerifier_Mismatch(t *testing.T) {
	v := NewVerifier([]byte("test-secret"))
	err := v.Verify("order_123", "pay_456", "deadbeef")
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifier_WrongSecret(t *testing.T) {
	signer := NewVerifier([]byte("their-secret"))
	v := NewVerifier([]byte("our-secret"))

	err := v.Verify("order_123", "pay_456", signer.Sign("order_123", "pay_456"))
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifier_MissingDetails(t *testing.T) {
	v := NewVerifier([]byte("test-secret"))

	for _, tc := range []struct{ orderID, paymentID, sig string }{
		{"", "pay_456", "sig"},
		{"order_123", "", "sig"},
		{"order_123", "pay_456", ""},
	} {
		err := v.Verify(tc.orderID, tc.paymentID, tc.sig)
		require.ErrorIs(t, err, ErrMissingDetails)
	}
}

func TestClient_CreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)

		var req createOrderReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(640000), req.Amount) // 6400.00 in paise
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, 1, req.PaymentCapture)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "order_xyz",
			"amount":   req.Amount,
			"currency": req.Currency,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_id", "key_secret")

	got, err := c.CreateOrder(context.Background(), decimal.NewFromInt(6400), "receipt_1")
	require.NoError(t, err)
	assert.Equal(t, "order_xyz", got.ID)
	assert.Equal(t, int64(640000), got.Amount)
	assert.Equal(t, "key_id", got.KeyID)
}

func TestClient_CreateOrder_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_id", "key_secret")

	_, err := c.CreateOrder(context.Background(), decimal.NewFromInt(100), "receipt_1")
	require.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestClient_CreateOrder_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "key_id", "key_secret")

	_, err := c.CreateOrder(context.Background(), decimal.NewFromInt(100), "receipt_1")
	require.ErrorIs(t, err, ErrGatewayUnavailable)
}
