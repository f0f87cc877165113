package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veribridge/internal/verification/models"
	dErrors "veribridge/pkg/domain-errors"
)

func TestInterpret_Decision(t *testing.T) {
	t.Run("approved decision with nested status", func(t *testing.T) {
		raw := []byte(`{
			"action": "decision",
			"verification": {
				"id": "f04bdb47",
				"status": "approved",
				"vendorData": "%2B15551234567|wa-1"
			}
		}`)
		ev, ok, err := Interpret(raw)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, models.OutcomeApproved, ev.Outcome)
		assert.Equal(t, "%2B15551234567|wa-1", ev.Token.String())
		assert.Equal(t, "f04bdb47", ev.ProviderSessionID.String())
	})

	t.Run("falls back to top-level status", func(t *testing.T) {
		raw := []byte(`{
			"action": "decision",
			"status": "declined",
			"verification": {"vendorData": "tok|"}
		}`)
		ev, ok, err := Interpret(raw)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, models.OutcomeDeclined, ev.Outcome)
	})

	t.Run("numeric reason code normalized", func(t *testing.T) {
		raw := []byte(`{
			"action": "decision",
			"verification": {
				"status": "declined",
				"reason": "Document unreadable",
				"reasonCode": 104,
				"vendorData": "tok|"
			}
		}`)
		ev, ok, err := Interpret(raw)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "104", ev.ReasonCode)
		assert.Equal(t, "Document unreadable", ev.Reason)
	})

	t.Run("string reason code kept", func(t *testing.T) {
		raw := []byte(`{"action":"decision","verification":{"status":"declined","reasonCode":"104","vendorData":"tok|"}}`)
		ev, ok, err := Interpret(raw)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "104", ev.ReasonCode)
	})

	t.Run("unrecognized status maps to unknown", func(t *testing.T) {
		raw := []byte(`{"action":"decision","verification":{"status":"review_pending","vendorData":"tok|"}}`)
		ev, ok, err := Interpret(raw)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, models.OutcomeUnknown, ev.Outcome)
	})
}

func TestInterpret_Ignored(t *testing.T) {
	for _, action := range []string{"submitted", "started", "media.updated", ""} {
		t.Run("action "+action, func(t *testing.T) {
			raw := []byte(`{"action":"` + action + `","verification":{"vendorData":"tok|"}}`)
			_, ok, err := Interpret(raw)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestInterpret_Errors(t *testing.T) {
	t.Run("unparseable body", func(t *testing.T) {
		_, ok, err := Interpret([]byte(`{not json`))
		assert.False(t, ok)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("decision without correlation token", func(t *testing.T) {
		_, ok, err := Interpret([]byte(`{"action":"decision","verification":{"status":"approved"}}`))
		assert.False(t, ok)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("token violating transport bounds", func(t *testing.T) {
		_, ok, err := Interpret([]byte(`{"action":"decision","verification":{"status":"approved","vendorData":"has space"}}`))
		assert.False(t, ok)
		require.Error(t, err)
	})
}
