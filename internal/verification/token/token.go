// Package token implements the correlation token codec.
//
// The token rides through the external verification provider in its free-form
// vendor-metadata field and comes back verbatim in the decision callback; it
// is the only thing that re-associates a callback with the requester who
// started the verification. The codec therefore has to round-trip the
// requester identifier losslessly, stay within printable ASCII, and respect
// the provider's length bound.
package token

import (
	"net/url"
	"strings"

	id "veribridge/pkg/domain"
	dErrors "veribridge/pkg/domain-errors"
)

// delimiter separates the requester identifier from the optional session
// hint. Both fields are percent-escaped before joining, so a requester id
// that itself contains the delimiter survives the round trip instead of
// being silently truncated.
const delimiter = "|"

// Encode builds a correlation token from a requester id and an optional
// conversation/session hint supplied by the messaging side.
func Encode(requester id.RequesterID, sessionHint string) (id.CorrelationKey, error) {
	if requester.IsNil() {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "requester id cannot be empty")
	}
	encoded := url.QueryEscape(requester.String()) + delimiter + url.QueryEscape(sessionHint)
	if len(encoded) > id.MaxCorrelationKeyLength {
		return "", dErrors.New(dErrors.CodeValidation, "correlation token exceeds provider metadata bound")
	}
	return id.CorrelationKey(encoded), nil
}

// Decode recovers the requester id and session hint from a token.
//
// Fails with CodeValidation when the token lacks the delimiter structure or
// the requester field is empty; callbacks carrying such tokens cannot be
// attributed and are discarded by the caller.
func Decode(key id.CorrelationKey) (id.RequesterID, string, error) {
	raw := key.String()
	left, right, found := strings.Cut(raw, delimiter)
	if !found {
		return "", "", dErrors.New(dErrors.CodeValidation, "malformed correlation token: missing delimiter")
	}
	if strings.Contains(right, delimiter) {
		return "", "", dErrors.New(dErrors.CodeValidation, "malformed correlation token: extra delimiter")
	}
	rawRequester, err := url.QueryUnescape(left)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeValidation, "malformed correlation token: requester field")
	}
	if rawRequester == "" {
		return "", "", dErrors.New(dErrors.CodeValidation, "malformed correlation token: empty requester")
	}
	hint, err := url.QueryUnescape(right)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeValidation, "malformed correlation token: hint field")
	}
	// Format validation of the requester happened at encode time; decode only
	// guarantees lossless recovery so attribution never depends on re-parsing.
	return id.RequesterID(rawRequester), hint, nil
}
