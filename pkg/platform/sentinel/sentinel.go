// Package sentinel holds errors for infrastructure facts. Stores return these
// (optionally wrapped) so services can translate them into coded domain
// errors at the boundary.
//
// These represent factual states about resources, not validation failures:
//   - ErrNotFound: no session recorded for the correlation key
//   - ErrConflict: a session already exists and the backend enforces uniqueness
//   - ErrInvalidState: session in wrong lifecycle state for the operation
//   - ErrUnavailable: backing store temporarily unreachable
//
// For validation errors (bad input, malformed tokens), use pkg/domain-errors.
package sentinel

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
