// Package publisher decouples audit emission from audit delivery. Domain
// services call Emit; the publisher forwards to a sink either inline or
// through a buffered worker.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "veribridge/pkg/platform/audit"
)

type Publisher struct {
	sink   audit.Sink
	logger *slog.Logger

	inbox  chan audit.Event
	done   chan struct{}
	closed sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to asynchronous mode with the given
// buffer size. Emit then never blocks on the sink; events still pending at
// Close are drained before it returns.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// WithLogger sets the logger used for dropped or failed events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(sink audit.Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:   sink,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.run()
	}
	return p
}

// Emit records one event. In sync mode the sink error is returned; in async
// mode a full inbox drops the event with a warning rather than blocking the
// request path. Audit loss is logged, never fatal.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if p.inbox == nil {
		return p.sink.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		p.logger.Warn("audit inbox full, dropping event", "action", event.Action)
		return nil
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.sink.Append(context.Background(), event); err != nil {
			p.logger.Error("audit append failed", "action", event.Action, "error", err)
		}
	}
}

// Close drains pending events and closes the sink.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			<-p.done
		}
		if err := p.sink.Close(); err != nil {
			p.logger.Error("audit sink close failed", "error", err)
		}
	})
}
