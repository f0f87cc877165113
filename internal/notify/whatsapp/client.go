// Package whatsapp is the direct-message delivery channel, speaking the
// messaging provider's text-message API.
package whatsapp

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

// defaultTimeout bounds the send call so a slow messaging upstream cannot
// pin callback handlers.
const defaultTimeout = 12 * time.Second

type Client struct {
	baseURL string
	apiKey  string
	sender  string
	http    *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithTimeout overrides the outbound call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient swaps the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func NewClient(baseURL, apiKey, sender string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		sender:  sender,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "whatsapp" }

type textMessage struct {
	From    string      `json:"from"`
	To      string      `json:"to"`
	Content textContent `json:"content"`
}

type textContent struct {
	Text string `json:"text"`
}

// Send delivers a plain text message. Non-2xx responses and transport
// failures surface as upstream errors; the dispatcher turns them into an
// undelivered result.
func (c *Client) Send(ctx context.Context, to id.RequesterID, text string) error {
	body, err := json.Marshal(textMessage{
		From:    c.sender,
		To:      to.String(),
		Content: textContent{Text: text},
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/whatsapp/1/message/text", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "App "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstream, "messaging send failed")
	}
	defer resp.Body.Close()
	// Drain so the connection is reusable; the body itself is not needed.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return dErrors.Newf(dErrors.CodeUpstream, "messaging send rejected: status %d", resp.StatusCode)
	}
	return nil
}
