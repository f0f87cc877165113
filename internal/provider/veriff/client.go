// Package veriff is the external verification provider client: session
// creation and decision polling. The provider hosts the actual document and
// face checks; this service only hands it the correlation token (as vendor
// metadata) and a callback URL.
package veriff

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"veribridge/internal/verification/signature"
	id "veribridge/pkg/domain"
	dErrors "veribridge/pkg/domain-errors"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL string
	apiKey  string
	signer  *signature.Verifier
	http    *http.Client
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// NewClient builds a provider client. sharedSecret signs decision-poll
// requests; it is the same secret that authenticates inbound callbacks.
func NewClient(baseURL, apiKey, sharedSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		signer:  signature.New(sharedSecret),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSessionRequest carries everything the provider needs to host one
// verification attempt.
type CreateSessionRequest struct {
	FirstName   string
	LastName    string
	CallbackURL string
	VendorData  id.CorrelationKey
}

// CreatedSession is the provider's answer: its session id and the hosted
// verification URL the user opens.
type CreatedSession struct {
	ID  id.ProviderSessionID
	URL string
}

type sessionPayload struct {
	Verification struct {
		Callback string `json:"callback"`
		Person   struct {
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
		} `json:"person"`
		VendorData string `json:"vendorData"`
		Timestamp  string `json:"timestamp"`
	} `json:"verification"`
}

// CreateSession asks the provider to mint a hosted verification session.
// Failures are upstream errors; the caller maps them to a 502 for the
// original caller without leaking provider internals.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*CreatedSession, error) {
	var payload sessionPayload
	payload.Verification.Callback = req.CallbackURL
	payload.Verification.Person.FirstName = req.FirstName
	payload.Verification.Person.LastName = req.LastName
	payload.Verification.VendorData = req.VendorData.String()
	payload.Verification.Timestamp = time.Now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal session payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("X-AUTH-CLIENT", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "verification session create failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, dErrors.Newf(dErrors.CodeUpstream, "verification session create rejected: status %d", resp.StatusCode)
	}

	var created struct {
		Verification struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"verification"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&created); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "verification session create: unparseable response")
	}
	if created.Verification.URL == "" {
		return nil, dErrors.New(dErrors.CodeUpstream, "verification session create: response missing url")
	}
	return &CreatedSession{
		ID:  id.ProviderSessionID(created.Verification.ID),
		URL: created.Verification.URL,
	}, nil
}

// Decision is the provider's current answer for a session, used by the
// polling fallback when a callback is suspected lost.
type Decision struct {
	Status     string
	Reason     string
	ReasonCode string
}

// GetDecision polls the provider for the session's decision. The request is
// signed with the shared secret over the session id, per the provider's
// retrieval contract.
func (c *Client) GetDecision(ctx context.Context, sessionID id.ProviderSessionID) (*Decision, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/sessions/"+sessionID.String()+"/decision", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("X-AUTH-CLIENT", c.apiKey)
	httpReq.Header.Set("X-HMAC-SIGNATURE", c.signer.Sign([]byte(sessionID.String())))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "decision poll failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, dErrors.Newf(dErrors.CodeUpstream, "decision poll rejected: status %d", resp.StatusCode)
	}

	var body struct {
		Verification struct {
			Status     string          `json:"status"`
			Reason     string          `json:"reason"`
			ReasonCode json.RawMessage `json:"reasonCode"`
		} `json:"verification"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "decision poll: unparseable response")
	}

	code := ""
	if len(body.Verification.ReasonCode) > 0 && string(body.Verification.ReasonCode) != "null" {
		var s string
		if json.Unmarshal(body.Verification.ReasonCode, &s) == nil {
			code = s
		} else {
			code = string(body.Verification.ReasonCode)
		}
	}
	return &Decision{
		Status:     body.Verification.Status,
		Reason:     body.Verification.Reason,
		ReasonCode: code,
	}, nil
}
