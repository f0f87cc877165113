// Package domain provides validated domain primitives shared across modules.
//
// Construct values via the Parse* functions at trust boundaries; direct
// casting bypasses validation.
package domain

import (
	"strings"

	dErrors "veribridge/pkg/domain-errors"
)

// RequesterID is the messaging address of the person being verified, in
// E.164-like form (optional leading +, 7 to 15 digits).
//
// Invariant: non-empty, digits only after the optional +. The raw address is
// what the notification dispatcher ultimately delivers to, so it is validated
// once here and trusted downstream.
type RequesterID string

// MaxRequesterIDLength bounds caller input before format checks run.
const MaxRequesterIDLength = 32

// ParseRequesterID validates external input into a RequesterID.
func ParseRequesterID(s string) (RequesterID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "requester id is required")
	}
	if len(s) > MaxRequesterIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "requester id too long")
	}
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "requester id must be 7-15 digits")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "requester id must contain only digits")
		}
	}
	return RequesterID(s), nil
}

func (r RequesterID) String() string { return string(r) }

// IsNil reports whether the requester id is empty.
func (r RequesterID) IsNil() bool { return r == "" }

// CorrelationKey identifies one outstanding verification attempt. It is the
// encoded correlation token, handed to the external provider as vendor
// metadata and returned verbatim in the decision callback.
type CorrelationKey string

// MaxCorrelationKeyLength matches the provider's vendor-metadata field bound.
const MaxCorrelationKeyLength = 256

// ParseCorrelationKey validates external input (status lookups, callbacks)
// into a CorrelationKey. Structural validation of the token payload belongs
// to the token codec; this only enforces the transport-level bounds.
func ParseCorrelationKey(s string) (CorrelationKey, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "correlation key is required")
	}
	if len(s) > MaxCorrelationKeyLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "correlation key too long")
	}
	for _, r := range s {
		if r < 0x21 || r > 0x7e {
			return "", dErrors.New(dErrors.CodeInvalidInput, "correlation key must be printable ASCII")
		}
	}
	return CorrelationKey(s), nil
}

func (k CorrelationKey) String() string { return string(k) }

// IsNil reports whether the correlation key is empty.
func (k CorrelationKey) IsNil() bool { return k == "" }

// ProviderSessionID is the verification session identifier assigned by the
// external provider. Opaque; only equality matters.
type ProviderSessionID string

func (p ProviderSessionID) String() string { return string(p) }
