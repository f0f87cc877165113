// Package flow is the flow-trigger delivery channel: instead of a standalone
// message it resumes the user's stateful conversation flow on the messaging
// platform, which reads the outcome text from the trigger payload.
package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	id "veribridge/pkg/domain"
	dErrors "veribridge/pkg/domain-errors"
)

const defaultTimeout = 12 * time.Second

type Trigger struct {
	url    string
	apiKey string
	http   *http.Client
}

type Option func(*Trigger)

func WithTimeout(d time.Duration) Option {
	return func(t *Trigger) {
		t.http.Timeout = d
	}
}

func NewTrigger(url, apiKey string, opts ...Option) *Trigger {
	t := &Trigger{
		url:    url,
		apiKey: apiKey,
		http:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Trigger) Name() string { return "flow" }

type triggerPayload struct {
	To         string            `json:"to"`
	Parameters map[string]string `json:"parameters"`
}

// Send fires the flow trigger. Only a 2xx response within the timeout counts
// as accepted; anything else makes the dispatcher fall back to the direct
// message channel.
func (t *Trigger) Send(ctx context.Context, to id.RequesterID, text string) error {
	body, err := json.Marshal(triggerPayload{
		To:         to.String(),
		Parameters: map[string]string{"verification_result": text},
	})
	if err != nil {
		return fmt.Errorf("marshal trigger payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "App "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstream, "flow trigger failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return dErrors.Newf(dErrors.CodeUpstream, "flow trigger rejected: status %d", resp.StatusCode)
	}
	return nil
}
