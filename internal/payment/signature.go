// Package payment holds the confirmation-proof oracles used by the
// booking lifecycle: the keyed-hash verifier for signed provider callbacks
// and the charge gateway for status polling and webhooks.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureVerifier checks hex HMAC-SHA256 signatures over
// "order_id|payment_id", the format signed checkout callbacks use.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier returns a verifier for secret.  With an empty
// secret every signature is rejected.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Sign returns the expected signature for an order/payment pair.
func (v *SignatureVerifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the order/payment pair.  The
// comparison runs in constant time.
func (v *SignatureVerifier) Verify(orderID, paymentID, signature string) bool {
	if len(v.secret) == 0 || orderID == "" || paymentID == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(v.Sign(orderID, paymentID))
	return hmac.Equal(got, want)
}
