//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "veribridge/pkg/platform/audit"
	"veribridge/pkg/testutil/containers"
)

func TestKafkaSink(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	t.Cleanup(func() {
		_ = rp.Container.Terminate(context.Background())
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sink, err := NewSink(ctx, []string{rp.Broker}, "veribridge.audit.test")
	require.NoError(t, err)
	defer sink.Close()

	event := audit.Event{
		Timestamp:      time.Now().UTC(),
		CorrelationKey: "%2B15551234567|Ana",
		SessionID:      "sess-123",
		Action:         string(audit.EventDecisionApplied),
		Outcome:        "approved",
	}
	require.NoError(t, sink.Append(ctx, event))

	// Creating the sink twice against the same topic must not fail.
	second, err := NewSink(ctx, []string{rp.Broker}, "veribridge.audit.test")
	require.NoError(t, err)
	second.Close()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics("veribridge.audit.test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	assert.Equal(t, "%2B15551234567|Ana", string(records[0].Key))
	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, string(audit.EventDecisionApplied), got.Action)
	assert.Equal(t, "approved", got.Outcome)
}
