package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"veribridge/internal/verification/models"
	id "veribridge/pkg/domain"
)

type fakeChannel struct {
	name  string
	err   error
	sent  []string
	to    []id.RequesterID
	calls int
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(_ context.Context, to id.RequesterID, text string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.sent = append(f.sent, text)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("direct channel only", func(t *testing.T) {
		direct := &fakeChannel{name: "whatsapp"}
		d := NewDispatcher(direct, nil, testLogger())

		res := d.Dispatch(ctx, "+15551234567", models.OutcomeApproved, "", "")
		assert.True(t, res.Delivered)
		assert.Equal(t, "whatsapp", res.Channel)
		assert.Equal(t, []id.RequesterID{"+15551234567"}, direct.to)
	})

	t.Run("flow trigger preferred when configured", func(t *testing.T) {
		direct := &fakeChannel{name: "whatsapp"}
		flow := &fakeChannel{name: "flow"}
		d := NewDispatcher(direct, flow, testLogger())

		res := d.Dispatch(ctx, "+15551234567", models.OutcomeApproved, "", "")
		assert.True(t, res.Delivered)
		assert.Equal(t, "flow", res.Channel)
		assert.Zero(t, direct.calls, "direct channel must not be attempted when flow succeeds")
	})

	t.Run("falls back to direct when flow fails", func(t *testing.T) {
		direct := &fakeChannel{name: "whatsapp"}
		flow := &fakeChannel{name: "flow", err: errors.New("504 gateway timeout")}
		d := NewDispatcher(direct, flow, testLogger())

		res := d.Dispatch(ctx, "+15551234567", models.OutcomeDeclined, "", "104")
		assert.True(t, res.Delivered)
		assert.Equal(t, "whatsapp", res.Channel)
		assert.Equal(t, 1, flow.calls)
	})

	t.Run("repeated flow failures open the circuit and skip the flow channel", func(t *testing.T) {
		direct := &fakeChannel{name: "whatsapp"}
		flow := &fakeChannel{name: "flow", err: errors.New("connection refused")}
		d := NewDispatcher(direct, flow, testLogger())

		// Breaker threshold is 3; after that, flow is no longer attempted.
		for range 5 {
			res := d.Dispatch(ctx, "+15551234567", models.OutcomeApproved, "", "")
			assert.True(t, res.Delivered)
			assert.Equal(t, "whatsapp", res.Channel)
		}
		assert.Equal(t, 3, flow.calls)
		assert.Equal(t, 5, direct.calls)
	})

	t.Run("all channels failing yields undelivered result, no error", func(t *testing.T) {
		direct := &fakeChannel{name: "whatsapp", err: errors.New("connection refused")}
		flow := &fakeChannel{name: "flow", err: errors.New("timeout")}
		d := NewDispatcher(direct, flow, testLogger())

		res := d.Dispatch(ctx, "+15551234567", models.OutcomeApproved, "", "")
		assert.False(t, res.Delivered)
		assert.Empty(t, res.Channel)
		assert.NotEmpty(t, res.Message)
	})
}

func TestRender(t *testing.T) {
	t.Run("approved", func(t *testing.T) {
		msg := Render(models.OutcomeApproved, "", "")
		assert.Contains(t, msg, "Identity confirmed")
	})

	t.Run("declined with mapped reason code renders text not code", func(t *testing.T) {
		msg := Render(models.OutcomeDeclined, "Face mismatch", "104")
		assert.Contains(t, msg, "your face was not clearly visible")
		assert.NotContains(t, msg, "104")
	})

	t.Run("declined with unmapped code falls back to provider reason", func(t *testing.T) {
		msg := Render(models.OutcomeDeclined, "Document type not supported", "999")
		assert.Contains(t, msg, "Document type not supported")
	})

	t.Run("declined camera failure gets device hint", func(t *testing.T) {
		msg := Render(models.OutcomeDeclined, "Microphone or camera not working", "")
		assert.Contains(t, msg, "camera")
		assert.Contains(t, msg, "permissions")
	})

	t.Run("resubmission asks for retake", func(t *testing.T) {
		msg := Render(models.OutcomeResubmission, "", "")
		assert.Contains(t, msg, "retake")
	})

	t.Run("expired", func(t *testing.T) {
		msg := Render(models.OutcomeExpired, "", "")
		assert.Contains(t, msg, "expired")
	})

	t.Run("unknown outcome uses generic fallback", func(t *testing.T) {
		msg := Render(models.OutcomeUnknown, "", "")
		assert.True(t, strings.Contains(msg, "unknown"))
	})
}
