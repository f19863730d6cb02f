package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mustafamilyas/expense-tracker/internal/domain"
)

// RelayVerifier checks the HMAC signature the trusted chat relay puts on
// every request it forwards. Verification runs over the exact raw bytes of
// the body; re-serializing a parsed payload would invalidate the signature.
type RelayVerifier struct {
	secret []byte
}

// NewRelayVerifier creates a verifier for the shared relay secret.
func NewRelayVerifier(secret string) *RelayVerifier {
	return &RelayVerifier{secret: []byte(secret)}
}

// Verify recomputes the HMAC-SHA256 of body and compares it in constant
// time against a header of the form "sha256=<hex>".
func (v *RelayVerifier) Verify(body []byte, signatureHeader string) error {
	presented, ok := strings.CutPrefix(signatureHeader, "sha256=")
	if !ok || presented == "" {
		return domain.ErrUnauthorized(domain.ReasonBadSignature)
	}
	decoded, err := hex.DecodeString(presented)
	if err != nil {
		return domain.ErrUnauthorized(domain.ReasonBadSignature)
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(decoded, mac.Sum(nil)) {
		return domain.ErrUnauthorized(domain.ReasonBadSignature)
	}
	return nil
}

// Sign computes the signature header value for body. Used by tests and by
// relay tooling; the server itself only verifies.
func (v *RelayVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
