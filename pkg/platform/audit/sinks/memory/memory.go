// Package memory is an in-process audit sink for tests and local runs.
package memory

import (
	"context"
	"sync"

	id "veribridge/pkg/domain"
	audit "veribridge/pkg/platform/audit"
)

type Sink struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Sink) Close() error { return nil }

// Events returns a copy of everything appended so far.
func (s *Sink) Events() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByKey filters events for one correlation key.
func (s *Sink) ByKey(key id.CorrelationKey) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.CorrelationKey == key {
			out = append(out, e)
		}
	}
	return out
}
