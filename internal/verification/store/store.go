// Package store defines the session store contract and its backends.
//
// The store is the only shared mutable resource in the service. Backends must
// provide per-key atomicity: two callbacks racing for the same correlation
// key serialize their validate-then-mutate sequence through Execute.
package store

import (
	"context"

	"veribridge/internal/verification/models"
	id "veribridge/pkg/domain"
)

// Store persists verification sessions keyed by correlation key.
//
// Design choice (documented, see DESIGN.md): Put is an upsert. A user may
// legitimately restart verification from the same conversation, which
// re-mints the same correlation token; the newer session overwrites the older
// one and the service logs a warning. Sessions are never deleted during the
// process lifetime.
type Store interface {
	// Put creates or replaces the session under its correlation key.
	Put(ctx context.Context, session *models.VerificationSession) error

	// Get returns the session for the key, or sentinel.ErrNotFound.
	Get(ctx context.Context, key id.CorrelationKey) (*models.VerificationSession, error)

	// Execute atomically loads the session, runs validate, and on nil error
	// runs mutate and persists the result, all while holding the per-key
	// lock (mutex, WATCH, or FOR UPDATE depending on the backend). Returns
	// the mutated session, or sentinel.ErrNotFound when the key is absent.
	Execute(ctx context.Context, key id.CorrelationKey,
		validate func(*models.VerificationSession) error,
		mutate func(*models.VerificationSession),
	) (*models.VerificationSession, error)
}
