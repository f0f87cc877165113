// Package service orchestrates the verification lifecycle: minting sessions
// against the provider, interpreting signed decision callbacks, and
// dispatching the outcome notification exactly once.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veribridge/internal/notify"
	"veribridge/internal/provider/veriff"
	"veribridge/internal/verification/decision"
	"veribridge/internal/verification/metrics"
	"veribridge/internal/verification/models"
	"veribridge/internal/verification/signature"
	"veribridge/internal/verification/store"
	"veribridge/internal/verification/token"
	id "veribridge/pkg/domain"
	dErrors "veribridge/pkg/domain-errors"
	audit "veribridge/pkg/platform/audit"
	"veribridge/pkg/platform/sentinel"
	"veribridge/pkg/requestcontext"
)

// defaultDisplayName greets requesters who started verification without a
// first name on record.
const defaultDisplayName = "Usuario"

// Provider mints hosted verification sessions and answers decision polls.
// Satisfied by veriff.Client.
type Provider interface {
	CreateSession(ctx context.Context, req veriff.CreateSessionRequest) (*veriff.CreatedSession, error)
	GetDecision(ctx context.Context, sessionID id.ProviderSessionID) (*veriff.Decision, error)
}

// Notifier delivers the rendered outcome message. Satisfied by
// notify.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, to id.RequesterID, outcome models.Outcome, reason, reasonCode string) notify.Result
}

// AuditEmitter records lifecycle events. Satisfied by publisher.Publisher.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config carries the orchestration policies.
type Config struct {
	// CallbackURL is the externally reachable decision webhook, handed to
	// the provider at session creation.
	CallbackURL string
	// RenotifyRepeatDecision re-sends the outcome message when a repeated
	// terminal decision arrives for an already-decided session. Default off:
	// duplicates converge silently.
	RenotifyRepeatDecision bool
}

type Service struct {
	store    store.Store
	provider Provider
	notifier Notifier
	verifier *signature.Verifier
	auditor  AuditEmitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config
	tracer   trace.Tracer
}

func NewService(
	sessions store.Store,
	provider Provider,
	notifier Notifier,
	verifier *signature.Verifier,
	auditor AuditEmitter,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg Config,
) *Service {
	return &Service{
		store:    sessions,
		provider: provider,
		notifier: notifier,
		verifier: verifier,
		auditor:  auditor,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		tracer:   otel.Tracer("veribridge/verification"),
	}
}

// StartResult is what the conversation side needs to continue: the hosted URL
// to hand to the user and the correlation key for later status queries.
type StartResult struct {
	VerificationURL string
	CorrelationKey  id.CorrelationKey
}

// BeginVerification mints a correlation token for the requester, opens a
// provider session carrying it as vendor metadata, and records the session.
//
// Restarting verification for the same requester and hint re-mints the same
// key; the fresh session overwrites the stale one with a warning.
func (s *Service) BeginVerification(ctx context.Context, rawRequester, firstName, lastName string) (*StartResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.begin")
	defer span.End()
	start := requestcontext.Now(ctx)
	defer s.metrics.ObserveStart(start)

	requester, err := id.ParseRequesterID(rawRequester)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("requester_id", requester.String()))

	displayName := firstName
	if displayName == "" {
		displayName = defaultDisplayName
	}

	key, err := token.Encode(requester, firstName)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Get(ctx, key); err == nil {
		s.logger.WarnContext(ctx, "verification restarted, replacing open session",
			"correlation_key", key,
			"requester_id", requester,
		)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "session lookup failed")
	}

	created, err := s.provider.CreateSession(ctx, veriff.CreateSessionRequest{
		FirstName:   displayName,
		LastName:    lastName,
		CallbackURL: s.cfg.CallbackURL,
		VendorData:  key,
	})
	if err != nil {
		return nil, err
	}

	session, err := models.NewSession(key, created.ID, requester, displayName, start)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "session persist failed")
	}

	s.metrics.IncrementSessionsStarted()
	s.emitAudit(ctx, audit.Event{
		CorrelationKey: key,
		SessionID:      created.ID,
		Action:         string(audit.EventVerificationStarted),
	})
	s.logger.InfoContext(ctx, "verification session started",
		"correlation_key", key,
		"provider_session_id", created.ID,
	)

	return &StartResult{VerificationURL: created.URL, CorrelationKey: key}, nil
}

// AckStatus tells the provider how the callback was absorbed. Both values
// ride a 200; the provider must not retry either.
type AckStatus string

const (
	AckReceived AckStatus = "received"
	AckIgnored  AckStatus = "ignored"
)

// Ack is the callback acknowledgement body.
type Ack struct {
	Status AckStatus `json:"status"`
}

// HandleCallback authenticates, interprets, and applies one provider
// callback.
//
// The only error it ever returns is CodeUnauthorized for a signature
// mismatch, which is also the only answer the provider treats as retriable.
// Every other failure mode (malformed body, unattributable token, unknown
// session, delivery failure) is absorbed: logged, counted, acknowledged.
func (s *Service) HandleCallback(ctx context.Context, rawBody []byte, providedSignature string) (Ack, error) {
	ctx, span := s.tracer.Start(ctx, "verification.callback")
	defer span.End()
	start := requestcontext.Now(ctx)
	defer s.metrics.ObserveCallback(start)

	if s.verifier.Enabled() && !s.verifier.Verify(rawBody, providedSignature) {
		s.metrics.RecordCallbackRejected("signature")
		s.emitAudit(ctx, audit.Event{
			Action: string(audit.EventCallbackRejected),
			Detail: "signature mismatch",
		})
		return Ack{}, dErrors.New(dErrors.CodeUnauthorized, "callback signature mismatch")
	}

	event, isDecision, err := decision.Interpret(rawBody)
	if err != nil {
		s.metrics.RecordCallbackRejected("malformed")
		s.emitAudit(ctx, audit.Event{
			Action: string(audit.EventCallbackRejected),
			Detail: err.Error(),
		})
		s.logger.WarnContext(ctx, "callback discarded", "error", err)
		return Ack{Status: AckIgnored}, nil
	}
	if !isDecision {
		s.metrics.RecordCallback("ignored")
		return Ack{Status: AckIgnored}, nil
	}
	span.SetAttributes(
		attribute.String("outcome", string(event.Outcome)),
		attribute.String("provider_session_id", event.ProviderSessionID.String()),
	)

	// Attribution check: a token that cannot be decoded could never have been
	// minted here, so it is discarded before touching the store.
	if _, _, err := token.Decode(event.Token); err != nil {
		s.metrics.RecordCallbackRejected("malformed")
		s.emitAudit(ctx, audit.Event{
			CorrelationKey: event.Token,
			SessionID:      event.ProviderSessionID,
			Action:         string(audit.EventCallbackRejected),
			Detail:         err.Error(),
		})
		s.logger.WarnContext(ctx, "callback token unattributable",
			"correlation_key", event.Token,
			"error", err,
		)
		return Ack{Status: AckIgnored}, nil
	}

	var applied models.DecisionApplied
	session, err := s.store.Execute(ctx, event.Token,
		func(*models.VerificationSession) error { return nil },
		func(sess *models.VerificationSession) {
			applied = sess.ApplyDecision(event.Outcome, event.Reason, event.ReasonCode, start)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementUnmatched()
			s.emitAudit(ctx, audit.Event{
				CorrelationKey: event.Token,
				SessionID:      event.ProviderSessionID,
				Action:         string(audit.EventCallbackUnmatched),
			})
			s.logger.WarnContext(ctx, "callback matched no session",
				"correlation_key", event.Token,
				"provider_session_id", event.ProviderSessionID,
			)
			return Ack{Status: AckIgnored}, nil
		}
		// Absorbing a store failure drops the decision, but a non-2xx here
		// only buys blind redelivery of the same body. The decision remains
		// recoverable through the provider's poll API.
		s.logger.ErrorContext(ctx, "callback store update failed",
			"correlation_key", event.Token,
			"error", err,
		)
		return Ack{Status: AckIgnored}, nil
	}

	s.recordDecision(ctx, event, session, applied)

	return Ack{Status: AckReceived}, nil
}

// recordDecision books the metrics and audit trail for an applied decision
// and dispatches the outcome notification unless the decision was a repeat.
func (s *Service) recordDecision(ctx context.Context, event models.CallbackEvent, session *models.VerificationSession, applied models.DecisionApplied) {
	s.metrics.RecordDecision(string(event.Outcome))
	if applied.Repeat {
		s.metrics.RecordCallback("repeat")
		s.emitAudit(ctx, audit.Event{
			CorrelationKey: event.Token,
			SessionID:      session.ProviderSessionID,
			Action:         string(audit.EventDecisionRepeated),
			Outcome:        string(event.Outcome),
		})
	} else {
		s.metrics.RecordCallback("applied")
		s.emitAudit(ctx, audit.Event{
			CorrelationKey: event.Token,
			SessionID:      session.ProviderSessionID,
			Action:         string(audit.EventDecisionApplied),
			Outcome:        string(event.Outcome),
		})
	}

	if !applied.Repeat || s.cfg.RenotifyRepeatDecision {
		s.dispatchOutcome(ctx, session.RequesterID, event)
	} else {
		s.logger.InfoContext(ctx, "repeated terminal decision, reason updated without re-notify",
			"correlation_key", event.Token,
			"outcome", event.Outcome,
		)
	}
}

func (s *Service) dispatchOutcome(ctx context.Context, to id.RequesterID, event models.CallbackEvent) {
	start := requestcontext.Now(ctx)
	defer s.metrics.ObserveNotify(start)

	result := s.notifier.Dispatch(ctx, to, event.Outcome, event.Reason, event.ReasonCode)
	if !result.Delivered {
		s.metrics.RecordNotification("none", "failed")
		s.emitAudit(ctx, audit.Event{
			CorrelationKey: event.Token,
			SessionID:      event.ProviderSessionID,
			Action:         string(audit.EventNotificationFailed),
			Outcome:        string(event.Outcome),
		})
		return
	}

	s.metrics.RecordNotification(result.Channel, "delivered")
	s.emitAudit(ctx, audit.Event{
		CorrelationKey: event.Token,
		SessionID:      event.ProviderSessionID,
		Action:         string(audit.EventNotificationSent),
		Outcome:        string(event.Outcome),
		Channel:        result.Channel,
	})

	// Best effort: the notification already went out, a lost timestamp only
	// degrades the admin view.
	if _, err := s.store.Execute(ctx, event.Token,
		func(*models.VerificationSession) error { return nil },
		func(sess *models.VerificationSession) { sess.MarkNotified(requestcontext.Now(ctx)) },
	); err != nil {
		s.logger.WarnContext(ctx, "notified-at update failed",
			"correlation_key", event.Token,
			"error", err,
		)
	}
}

// RefreshDecision polls the provider for the session's current decision and
// folds it in as if the callback had arrived, recovering sessions whose
// callback was lost. A repeat of an already-applied decision converges the
// same way a redelivered callback does.
func (s *Service) RefreshDecision(ctx context.Context, key id.CorrelationKey) (*models.VerificationSession, error) {
	ctx, span := s.tracer.Start(ctx, "verification.refresh")
	defer span.End()
	start := requestcontext.Now(ctx)

	session, err := s.SessionStatus(ctx, key)
	if err != nil {
		return nil, err
	}

	polled, err := s.provider.GetDecision(ctx, session.ProviderSessionID)
	if err != nil {
		return nil, err
	}

	outcome := models.ParseOutcome(polled.Status)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if outcome == models.OutcomeUnknown {
		// The provider has no decision yet; unlike a pushed callback there is
		// nothing to fold in, so the session is returned untouched.
		s.logger.InfoContext(ctx, "decision refresh found no decision yet",
			"correlation_key", key,
			"provider_status", polled.Status,
		)
		return session, nil
	}

	event := models.CallbackEvent{
		Action:            decision.ActionDecision,
		Outcome:           outcome,
		Reason:            polled.Reason,
		ReasonCode:        polled.ReasonCode,
		Token:             key,
		ProviderSessionID: session.ProviderSessionID,
	}

	var applied models.DecisionApplied
	session, err = s.store.Execute(ctx, key,
		func(*models.VerificationSession) error { return nil },
		func(sess *models.VerificationSession) {
			applied = sess.ApplyDecision(event.Outcome, event.Reason, event.ReasonCode, start)
		},
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "session update failed")
	}

	s.logger.InfoContext(ctx, "decision refreshed from provider",
		"correlation_key", key,
		"outcome", event.Outcome,
		"repeat", applied.Repeat,
	)
	s.recordDecision(ctx, event, session, applied)

	// Re-read so the response reflects the notified-at stamp the dispatch may
	// have just written.
	if fresh, err := s.store.Get(ctx, key); err == nil {
		session = fresh
	}
	return session, nil
}

// SessionStatus returns the session for the admin status surface.
func (s *Service) SessionStatus(ctx context.Context, key id.CorrelationKey) (*models.VerificationSession, error) {
	session, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no session for correlation key")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "session lookup failed")
	}
	return session, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
