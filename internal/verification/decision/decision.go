// Package decision interprets raw provider callbacks into normalized events.
//
// The provider emits intermediate lifecycle events (submission started, media
// uploaded) on the same webhook; only the terminal decision action may ever
// trigger a notification, so everything else is reported as ignorable here
// and acknowledged without side effects upstream.
package decision

import (
	"encoding/json"
	"strconv"

	"veribridge/internal/verification/models"
	id "veribridge/pkg/domain"
	dErrors "veribridge/pkg/domain-errors"
)

// ActionDecision is the provider action kind carrying a decision outcome.
const ActionDecision = "decision"

// payload mirrors the provider's callback shape. Status historically appears
// both at the top level and inside the verification object depending on the
// provider's webhook version; the nested one wins when present.
type payload struct {
	Action       string `json:"action"`
	Status       string `json:"status"`
	Verification struct {
		ID         string          `json:"id"`
		Status     string          `json:"status"`
		Reason     string          `json:"reason"`
		ReasonCode json.RawMessage `json:"reasonCode"`
		VendorData string          `json:"vendorData"`
	} `json:"verification"`
}

// Interpret parses a raw callback body.
//
// Returns (event, true, nil) for a decision callback, (zero, false, nil) for
// any other action (the caller acknowledges without acting), and a
// CodeValidation error when the body is unparseable or the decision carries
// no correlation token. Errors here are logged and discarded by the caller,
// never surfaced to the provider as retriable failures.
func Interpret(raw []byte) (models.CallbackEvent, bool, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.CallbackEvent{}, false, dErrors.Wrap(err, dErrors.CodeValidation, "unparseable callback body")
	}

	if p.Action != ActionDecision {
		return models.CallbackEvent{}, false, nil
	}

	if p.Verification.VendorData == "" {
		return models.CallbackEvent{}, false, dErrors.New(dErrors.CodeValidation, "decision callback carries no correlation token")
	}
	tok, err := id.ParseCorrelationKey(p.Verification.VendorData)
	if err != nil {
		return models.CallbackEvent{}, false, dErrors.Wrap(err, dErrors.CodeValidation, "decision callback correlation token rejected")
	}

	status := p.Verification.Status
	if status == "" {
		status = p.Status
	}

	return models.CallbackEvent{
		Action:            p.Action,
		Outcome:           models.ParseOutcome(status),
		Reason:            p.Verification.Reason,
		ReasonCode:        reasonCodeString(p.Verification.ReasonCode),
		Token:             tok,
		ProviderSessionID: id.ProviderSessionID(p.Verification.ID),
	}, true, nil
}

// reasonCodeString normalizes the reason code, which the provider sends
// either as a JSON number or a string.
func reasonCodeString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return string(raw)
}
