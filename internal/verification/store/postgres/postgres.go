// Package postgres provides the PostgreSQL-backed session store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"veribridge/internal/verification/models"
	id "veribridge/pkg/domain"
	"veribridge/pkg/platform/sentinel"
)

// Schema is applied by EnsureSchema. The correlation key is the natural
// primary key; there is exactly one session row per outstanding attempt and
// Put intentionally overwrites on restart of the same verification.
const Schema = `
CREATE TABLE IF NOT EXISTS verification_sessions (
	correlation_key     TEXT PRIMARY KEY,
	provider_session_id TEXT NOT NULL DEFAULT '',
	requester_id        TEXT NOT NULL,
	display_name        TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL,
	reason              TEXT NOT NULL DEFAULT '',
	reason_code         TEXT NOT NULL DEFAULT '',
	notified_at         TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
)`

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the sessions table when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, session *models.VerificationSession) error {
	query := `
		INSERT INTO verification_sessions
			(correlation_key, provider_session_id, requester_id, display_name,
			 status, reason, reason_code, notified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (correlation_key) DO UPDATE SET
			provider_session_id = EXCLUDED.provider_session_id,
			requester_id        = EXCLUDED.requester_id,
			display_name        = EXCLUDED.display_name,
			status              = EXCLUDED.status,
			reason              = EXCLUDED.reason,
			reason_code         = EXCLUDED.reason_code,
			notified_at         = EXCLUDED.notified_at,
			created_at          = EXCLUDED.created_at,
			updated_at          = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		session.CorrelationKey.String(),
		session.ProviderSessionID.String(),
		session.RequesterID.String(),
		session.DisplayName,
		string(session.Status),
		session.Reason,
		session.ReasonCode,
		nullableTime(session.NotifiedAt),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key id.CorrelationKey) (*models.VerificationSession, error) {
	row := s.db.QueryRowContext(ctx, selectQuery+` WHERE correlation_key = $1`, key.String())
	return scanSession(row)
}

// Execute loads the row FOR UPDATE inside a transaction so racing callbacks
// for the same key serialize their validate-then-mutate sequence on the row
// lock.
func (s *Store) Execute(ctx context.Context, key id.CorrelationKey,
	validate func(*models.VerificationSession) error,
	mutate func(*models.VerificationSession),
) (*models.VerificationSession, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, selectQuery+` WHERE correlation_key = $1 FOR UPDATE`, key.String())
	session, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	if err := validate(session); err != nil {
		return nil, err
	}
	mutate(session)

	_, err = tx.ExecContext(ctx, `
		UPDATE verification_sessions SET
			provider_session_id = $2,
			status      = $3,
			reason      = $4,
			reason_code = $5,
			notified_at = $6,
			updated_at  = $7
		WHERE correlation_key = $1`,
		session.CorrelationKey.String(),
		session.ProviderSessionID.String(),
		string(session.Status),
		session.Reason,
		session.ReasonCode,
		nullableTime(session.NotifiedAt),
		session.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return session, nil
}

const selectQuery = `
	SELECT correlation_key, provider_session_id, requester_id, display_name,
	       status, reason, reason_code, notified_at, created_at, updated_at
	FROM verification_sessions`

func scanSession(row *sql.Row) (*models.VerificationSession, error) {
	var (
		session    models.VerificationSession
		key        string
		providerID string
		requester  string
		status     string
		notifiedAt sql.NullTime
	)
	err := row.Scan(&key, &providerID, &requester, &session.DisplayName,
		&status, &session.Reason, &session.ReasonCode, &notifiedAt,
		&session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	parsed, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	session.CorrelationKey = id.CorrelationKey(key)
	session.ProviderSessionID = id.ProviderSessionID(providerID)
	session.RequesterID = id.RequesterID(requester)
	session.Status = parsed
	if notifiedAt.Valid {
		t := notifiedAt.Time
		session.NotifiedAt = &t
	}
	return &session, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
