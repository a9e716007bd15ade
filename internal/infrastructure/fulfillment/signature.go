package fulfillment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Errors for webhook signature verification
var (
	ErrMissingSignature = errors.New("fulfillment: signature header is required")
	ErrInvalidSignature = errors.New("fulfillment: signature does not match payload")
)

// SignatureVerifier checks HMAC-SHA256 signatures on webhook payloads.
// Suppliers and forwarders sign the raw request body with a shared
// secret and send the hex digest in a header.
type SignatureVerifier struct {
	secret  []byte
	enabled bool
}

// NewSignatureVerifier creates a verifier for the given shared secret.
// When enabled is false Verify accepts every payload, which is only
// meant for local development.
func NewSignatureVerifier(secret string, enabled bool) *SignatureVerifier {
	return &SignatureVerifier{
		secret:  []byte(secret),
		enabled: enabled,
	}
}

// Sign computes the hex HMAC-SHA256 digest of the payload
func (v *SignatureVerifier) Sign(payload []byte) string {
	h := hmac.New(sha256.New, v.secret)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks the signature against the payload using a constant
// time comparison
func (v *SignatureVerifier) Verify(payload []byte, signature string) error {
	if !v.enabled {
		return nil
	}
	if signature == "" {
		return ErrMissingSignature
	}
	expected := v.Sign(payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
