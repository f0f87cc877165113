package models

import (
	"time"

	id "veribridge/pkg/domain"
	dErrors "veribridge/pkg/domain-errors"
)

// Status is the lifecycle state of a verification session.
//
// Transitions:
//
//	created --decision(approved)--> approved (terminal)
//	created --decision(declined)--> declined (terminal)
//	created --decision(expired)---> expired  (terminal)
//	created --decision(resubmission_requested)--> created (loops)
//
// Terminal states accept further decisions only as reason updates; a repeat
// terminal decision never re-enters created.
type Status string

const (
	StatusCreated  Status = "created"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
)

// IsTerminal reports whether the status is a final decision state.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusDeclined || s == StatusExpired
}

// ParseStatus validates a stored status string (used by durable store
// backends when rehydrating rows).
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusCreated, StatusApproved, StatusDeclined, StatusExpired:
		return Status(raw), nil
	}
	return "", dErrors.Newf(dErrors.CodeInvariantViolation, "unknown session status %q", raw)
}

// VerificationSession is the aggregate for one outstanding verification
// attempt.
//
// Invariants:
//   - CorrelationKey and RequesterID are non-empty
//   - Status follows the transition diagram above
//   - UpdatedAt never moves backwards
//   - Sessions are never deleted during the process lifetime; terminal
//     sessions are retained for idempotency and status queries
//
// Ownership: the session store owns persistence; the orchestrator mutates
// only through the store's Execute callback so racing callbacks for the same
// key serialize their update-then-notify sequence.
type VerificationSession struct {
	CorrelationKey    id.CorrelationKey    `json:"correlation_key"`
	ProviderSessionID id.ProviderSessionID `json:"provider_session_id"`
	RequesterID       id.RequesterID       `json:"requester_id"`
	DisplayName       string               `json:"display_name"`
	Status            Status               `json:"status"`
	Reason            string               `json:"reason,omitempty"`
	ReasonCode        string               `json:"reason_code,omitempty"`
	NotifiedAt        *time.Time           `json:"notified_at,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// NewSession constructs a created-state session.
func NewSession(key id.CorrelationKey, providerSessionID id.ProviderSessionID, requester id.RequesterID, displayName string, now time.Time) (*VerificationSession, error) {
	if key.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "correlation key cannot be empty")
	}
	if requester.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requester id cannot be empty")
	}
	return &VerificationSession{
		CorrelationKey:    key,
		ProviderSessionID: providerSessionID,
		RequesterID:       requester,
		DisplayName:       displayName,
		Status:            StatusCreated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// DecisionApplied describes what ApplyDecision changed, so the service can
// decide whether a notification is due without re-deriving state.
type DecisionApplied struct {
	// Terminal reports whether the session is terminal after the decision.
	Terminal bool
	// Repeat reports whether the session was already terminal before the
	// decision arrived (duplicate or out-of-order delivery).
	Repeat bool
}

// ApplyDecision folds a decision outcome into the session. Terminal outcomes
// move created sessions to their terminal status; on an already-terminal
// session the later decision wins for status and reason but is flagged as a
// repeat. Non-terminal outcomes (resubmission requested, unknown status)
// update the reason and leave the session in created.
//
// UpdatedAt is monotonic: a callback carrying an older request time never
// rewinds the timestamp.
func (s *VerificationSession) ApplyDecision(outcome Outcome, reason, reasonCode string, now time.Time) DecisionApplied {
	wasTerminal := s.Status.IsTerminal()

	s.Reason = reason
	s.ReasonCode = reasonCode
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}

	switch outcome {
	case OutcomeApproved:
		s.Status = StatusApproved
	case OutcomeDeclined:
		s.Status = StatusDeclined
	case OutcomeExpired:
		s.Status = StatusExpired
	case OutcomeResubmission, OutcomeUnknown:
		// Session keeps waiting for a final decision.
	}

	return DecisionApplied{
		Terminal: s.Status.IsTerminal(),
		Repeat:   wasTerminal,
	}
}

// MarkNotified records a successful notification delivery time.
func (s *VerificationSession) MarkNotified(now time.Time) {
	t := now
	s.NotifiedAt = &t
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}
}
