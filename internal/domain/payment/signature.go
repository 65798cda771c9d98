// Package payment verifies gateway payment confirmations and initiates
// gateway orders.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/go-faster/errors"
)

var (
	// ErrMissingDetails is returned when an online payment confirmation is
	// missing the gateway order id, payment id, or signature.
	ErrMissingDetails = errors.New("payment details missing")
	// ErrInvalidSignature is returned when the provided signature does not
	// match the expected HMAC.
	ErrInvalidSignature = errors.New("invalid payment signature")
)

// Verifier checks gateway payment confirmations against a shared secret.
// The same Verifier instance serves both the standalone verify endpoint and
// the check inside order creation, so the comparison logic cannot drift.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier with the gateway's shared secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Sign returns the hex-encoded HMAC-SHA256 of "orderID|paymentID" under the
// shared secret. This mirrors how the gateway computes its callback signature.
func (v *Verifier) Sign(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the expected signature and compares it to the provided
// one in constant time.
func (v *Verifier) Verify(gatewayOrderID, gatewayPaymentID, signature string) error {
	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return ErrMissingDetails
	}

	expected := v.Sign(gatewayOrderID, gatewayPaymentID)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
