package models

import id "veribridge/pkg/domain"

// Outcome is the normalized decision outcome carried by a callback.
//
// The provider vocabulary is open-ended; anything outside the known set maps
// to OutcomeUnknown rather than failing, so provider additions degrade to a
// generic notification instead of dropped callbacks.
type Outcome string

const (
	OutcomeApproved     Outcome = "approved"
	OutcomeDeclined     Outcome = "declined"
	OutcomeResubmission Outcome = "resubmission_requested"
	OutcomeExpired      Outcome = "expired"
	OutcomeUnknown      Outcome = "unknown"
)

// ParseOutcome maps a provider status string onto the closed enumeration.
func ParseOutcome(raw string) Outcome {
	switch Outcome(raw) {
	case OutcomeApproved, OutcomeDeclined, OutcomeResubmission, OutcomeExpired:
		return Outcome(raw)
	}
	return OutcomeUnknown
}

// IsTerminal reports whether the outcome ends the verification attempt.
func (o Outcome) IsTerminal() bool {
	return o == OutcomeApproved || o == OutcomeDeclined || o == OutcomeExpired
}

// CallbackEvent is the normalized inbound decision notification. Ephemeral:
// it is folded into the session it updates and never persisted itself.
type CallbackEvent struct {
	Action            string
	Outcome           Outcome
	Reason            string
	ReasonCode        string
	Token             id.CorrelationKey
	ProviderSessionID id.ProviderSessionID
}
