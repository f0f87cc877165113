// Package memory provides the in-memory session store used by
// single-instance deployments and tests.
package memory

import (
	"context"
	"sync"

	"veribridge/internal/verification/models"
	id "veribridge/pkg/domain"
	"veribridge/pkg/platform/sentinel"
)

// Store keeps sessions in a mutex-guarded map. It favors clarity over
// performance; the session population is small (one per outstanding
// verification) and operations are short.
type Store struct {
	mu       sync.RWMutex
	sessions map[id.CorrelationKey]*models.VerificationSession
}

func New() *Store {
	return &Store{sessions: make(map[id.CorrelationKey]*models.VerificationSession)}
}

func (s *Store) Put(_ context.Context, session *models.VerificationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.CorrelationKey] = &cp
	return nil
}

func (s *Store) Get(_ context.Context, key id.CorrelationKey) (*models.VerificationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

// Execute holds the store lock for the whole validate-then-mutate sequence,
// which serializes racing callbacks for the same key.
func (s *Store) Execute(_ context.Context, key id.CorrelationKey,
	validate func(*models.VerificationSession) error,
	mutate func(*models.VerificationSession),
) (*models.VerificationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(session); err != nil {
		return nil, err
	}
	mutate(session)
	cp := *session
	return &cp, nil
}
