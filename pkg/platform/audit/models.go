// Package audit captures the key actions of the verification bridge as
// structured events. Domain logic emits events through a Publisher; sinks
// decide where they land (memory for tests, Kafka in deployments).
package audit

import (
	"context"
	"time"

	id "veribridge/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp      time.Time            `json:"timestamp"`
	CorrelationKey id.CorrelationKey    `json:"correlation_key,omitempty"`
	SessionID      id.ProviderSessionID `json:"session_id,omitempty"`
	Action         string               `json:"action"`
	Outcome        string               `json:"outcome,omitempty"`
	Channel        string               `json:"channel,omitempty"`
	Detail         string               `json:"detail,omitempty"`
	RequestID      string               `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	// Session lifecycle
	EventVerificationStarted AuditEvent = "verification_started"
	EventDecisionApplied     AuditEvent = "decision_applied"
	EventDecisionRepeated    AuditEvent = "decision_repeated"

	// Callback handling
	EventCallbackRejected  AuditEvent = "callback_rejected"
	EventCallbackUnmatched AuditEvent = "callback_unmatched"
	EventCallbackIgnored   AuditEvent = "callback_ignored"

	// Notification delivery
	EventNotificationSent   AuditEvent = "notification_sent"
	EventNotificationFailed AuditEvent = "notification_failed"
)

// Sink receives emitted events. Append must be safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, event Event) error
	Close() error
}
