// Package signature authenticates inbound callback payloads against the
// shared webhook secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Verifier checks an HMAC-SHA256 signature over the exact raw bytes of the
// request body.
//
// With no secret configured the verifier runs in a degraded accept-all mode.
// That mode is surfaced as a startup security warning by the caller and the
// production config profile refuses to start in it; the verifier itself stays
// policy-free.
type Verifier struct {
	secret []byte
}

// New builds a verifier for the given shared secret. An empty secret yields
// the accept-all verifier.
func New(secret string) *Verifier {
	if secret == "" {
		return &Verifier{}
	}
	return &Verifier{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify reports whether providedHex is a valid signature for body.
//
// The comparison is case-insensitive on the hex encoding (providers differ)
// but constant-time on the decoded bytes: the hex is decoded first and the
// digests compared with hmac.Equal, never by short-circuiting string compare.
func (v *Verifier) Verify(body []byte, providedHex string) bool {
	if !v.Enabled() {
		return true
	}
	provided, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(providedHex)))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}

// Sign computes the hex signature for body. Used by tests and by the local
// development tooling to fabricate valid callbacks.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
