package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "veribridge/pkg/domain"
)

func newTestSession(t *testing.T) *VerificationSession {
	t.Helper()
	s, err := NewSession("key-1", "prov-1", "+15551234567", "Ana", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return s
}

func TestNewSession_Invariants(t *testing.T) {
	t.Run("rejects empty correlation key", func(t *testing.T) {
		_, err := NewSession("", "prov", "+15551234567", "Ana", time.Now())
		require.Error(t, err)
	})

	t.Run("rejects empty requester", func(t *testing.T) {
		_, err := NewSession("key", "prov", "", "Ana", time.Now())
		require.Error(t, err)
	})

	t.Run("starts in created", func(t *testing.T) {
		s := newTestSession(t)
		assert.Equal(t, StatusCreated, s.Status)
		assert.False(t, s.Status.IsTerminal())
	})
}

func TestApplyDecision_Transitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

	t.Run("approved is terminal", func(t *testing.T) {
		s := newTestSession(t)
		applied := s.ApplyDecision(OutcomeApproved, "", "", now)
		assert.Equal(t, StatusApproved, s.Status)
		assert.True(t, applied.Terminal)
		assert.False(t, applied.Repeat)
	})

	t.Run("declined keeps reason", func(t *testing.T) {
		s := newTestSession(t)
		s.ApplyDecision(OutcomeDeclined, "document unreadable", "104", now)
		assert.Equal(t, StatusDeclined, s.Status)
		assert.Equal(t, "104", s.ReasonCode)
	})

	t.Run("resubmission loops on created", func(t *testing.T) {
		s := newTestSession(t)
		applied := s.ApplyDecision(OutcomeResubmission, "blurry photo", "", now)
		assert.Equal(t, StatusCreated, s.Status)
		assert.False(t, applied.Terminal)
		assert.False(t, applied.Repeat)
	})

	t.Run("unknown outcome stays created", func(t *testing.T) {
		s := newTestSession(t)
		applied := s.ApplyDecision(OutcomeUnknown, "new provider state", "", now)
		assert.Equal(t, StatusCreated, s.Status)
		assert.False(t, applied.Terminal)
	})

	t.Run("repeat terminal decision updates reason and flags repeat", func(t *testing.T) {
		s := newTestSession(t)
		s.ApplyDecision(OutcomeDeclined, "first reason", "104", now)

		applied := s.ApplyDecision(OutcomeDeclined, "second reason", "105", now.Add(time.Minute))
		assert.True(t, applied.Repeat)
		assert.Equal(t, StatusDeclined, s.Status)
		assert.Equal(t, "second reason", s.Reason)
		assert.Equal(t, "105", s.ReasonCode)
	})

	t.Run("later decision wins across different terminal states", func(t *testing.T) {
		s := newTestSession(t)
		s.ApplyDecision(OutcomeApproved, "", "", now)
		applied := s.ApplyDecision(OutcomeDeclined, "fraud review", "201", now.Add(time.Minute))
		assert.True(t, applied.Repeat)
		assert.Equal(t, StatusDeclined, s.Status)
	})

	t.Run("updated at never rewinds", func(t *testing.T) {
		s := newTestSession(t)
		s.ApplyDecision(OutcomeApproved, "", "", now)
		s.ApplyDecision(OutcomeApproved, "", "", now.Add(-time.Hour))
		assert.Equal(t, now, s.UpdatedAt)
	})
}

func TestParseOutcome(t *testing.T) {
	assert.Equal(t, OutcomeApproved, ParseOutcome("approved"))
	assert.Equal(t, OutcomeResubmission, ParseOutcome("resubmission_requested"))
	assert.Equal(t, OutcomeUnknown, ParseOutcome("review_pending"))
	assert.Equal(t, OutcomeUnknown, ParseOutcome(""))
}

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus("declined")
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, got)

	_, err = ParseStatus("garbage")
	require.Error(t, err)
}

func TestMarkNotified(t *testing.T) {
	s := newTestSession(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.MarkNotified(at)
	require.NotNil(t, s.NotifiedAt)
	assert.Equal(t, at, *s.NotifiedAt)
	assert.Equal(t, at, s.UpdatedAt)
}

// Keep the typed-ID usage honest: the store keys by CorrelationKey, not by
// provider session id.
func TestKeyTypes(t *testing.T) {
	s := newTestSession(t)
	var key id.CorrelationKey = s.CorrelationKey
	assert.Equal(t, "key-1", key.String())
}
