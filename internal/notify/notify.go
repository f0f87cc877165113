// Package notify renders verification outcomes into user messages and
// delivers them through the configured channels.
//
// Delivery failure is a result value, not an error: the callback path that
// triggers dispatch must always acknowledge the provider, so nothing here
// may panic or propagate. There is no retry queue; a failed attempt is
// terminal (known limitation, the provider's decision remains queryable).
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"veribridge/internal/verification/models"
	id "veribridge/pkg/domain"
	"veribridge/pkg/platform/circuit"
)

// flowRetryCooldown is how long an open flow circuit stays open before the
// next delivery probes the endpoint again.
const flowRetryCooldown = time.Minute

// Channel delivers one text message to a requester's messaging address.
type Channel interface {
	// Name identifies the channel in logs and results ("whatsapp", "flow").
	Name() string
	// Send delivers the text; the implementation bounds the call with its
	// own timeout and returns an error on timeout, network failure, or a
	// non-2xx response.
	Send(ctx context.Context, to id.RequesterID, text string) error
}

// Result is the dispatcher's return contract. Not persisted.
type Result struct {
	Message   string
	Delivered bool
	// Channel that accepted the message, "" when none did.
	Channel string
}

// Dispatcher attempts the flow-trigger channel first when configured (it
// resumes the user's conversation flow in place), falling back to the direct
// message channel.
//
// The flow channel sits behind a circuit breaker: once it fails repeatedly,
// deliveries go straight to the direct channel instead of burning the flow
// timeout on every outcome. After a cooldown the next delivery probes the
// flow endpoint again.
type Dispatcher struct {
	direct      Channel
	flow        Channel // nil when no flow trigger is configured
	flowBreaker *circuit.Breaker
	logger      *slog.Logger

	mu          sync.Mutex
	flowRetryAt time.Time
}

func NewDispatcher(direct Channel, flow Channel, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{direct: direct, flow: flow, logger: logger}
	if flow != nil {
		d.flowBreaker = circuit.New(flow.Name(),
			circuit.WithFailureThreshold(3),
			circuit.WithSuccessThreshold(1),
		)
	}
	return d
}

// Dispatch renders the outcome and attempts delivery. Never returns an
// error; the caller inspects Delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, to id.RequesterID, outcome models.Outcome, reason, reasonCode string) Result {
	message := Render(outcome, reason, reasonCode)
	result := Result{Message: message}

	if d.flow != nil && d.flowUsable() {
		if err := d.flow.Send(ctx, to, message); err != nil {
			if _, change := d.flowBreaker.RecordFailure(); change.Opened {
				d.scheduleFlowRetry()
				d.logger.WarnContext(ctx, "flow channel circuit opened", "channel", d.flow.Name())
			}
			d.logger.WarnContext(ctx, "notification delivery failed",
				"channel", d.flow.Name(),
				"requester_id", to,
				"outcome", outcome,
				"error", err,
			)
		} else {
			if _, change := d.flowBreaker.RecordSuccess(); change.Closed {
				d.logger.InfoContext(ctx, "flow channel circuit closed", "channel", d.flow.Name())
			}
			result.Delivered = true
			result.Channel = d.flow.Name()
			return result
		}
	}

	if d.direct != nil {
		if err := d.direct.Send(ctx, to, message); err != nil {
			d.logger.WarnContext(ctx, "notification delivery failed",
				"channel", d.direct.Name(),
				"requester_id", to,
				"outcome", outcome,
				"error", err,
			)
		} else {
			result.Delivered = true
			result.Channel = d.direct.Name()
			return result
		}
	}

	d.logger.ErrorContext(ctx, "notification undeliverable on all channels",
		"requester_id", to,
		"outcome", outcome,
	)
	return result
}

// flowUsable reports whether the flow channel should be attempted, reopening
// an expired circuit for a probe delivery.
func (d *Dispatcher) flowUsable() bool {
	if !d.flowBreaker.IsOpen() {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if time.Now().After(d.flowRetryAt) {
		d.flowBreaker.Reset()
		return true
	}
	return false
}

func (d *Dispatcher) scheduleFlowRetry() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flowRetryAt = time.Now().Add(flowRetryCooldown)
}
