// Package handler exposes the verification lifecycle over HTTP: session
// start, the provider's decision webhook, the browser return leg, and the
// admin status surface.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"veribridge/internal/platform/middleware"
	"veribridge/internal/verification/models"
	"veribridge/internal/verification/service"
	id "veribridge/pkg/domain"
	dErrors "veribridge/pkg/domain-errors"
	"veribridge/pkg/platform/httputil"
	"veribridge/pkg/requestcontext"
)

// maxCallbackBody bounds the webhook body read; decision payloads are small.
const maxCallbackBody = 1 << 20

// Service defines the orchestration operations the handler fronts.
type Service interface {
	BeginVerification(ctx context.Context, requester, firstName, lastName string) (*service.StartResult, error)
	HandleCallback(ctx context.Context, rawBody []byte, signature string) (service.Ack, error)
	SessionStatus(ctx context.Context, key id.CorrelationKey) (*models.VerificationSession, error)
	RefreshDecision(ctx context.Context, key id.CorrelationKey) (*models.VerificationSession, error)
}

type Handler struct {
	logger    *slog.Logger
	svc       Service
	admin     middleware.AdminValidator
	returnURL string
}

func New(svc Service, admin middleware.AdminValidator, logger *slog.Logger, returnURL string) *Handler {
	return &Handler{
		logger:    logger,
		svc:       svc,
		admin:     admin,
		returnURL: returnURL,
	}
}

// Register registers the verification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verifications", h.handleBegin)
	r.Post("/webhooks/decision", h.handleDecisionCallback)
	r.Get("/webhooks/decision", h.handleBrowserReturn)

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(middleware.RequireAdmin(h.admin, h.logger))
		admin.Get("/verifications/{key}", h.handleSessionStatus)
		admin.Post("/verifications/{key}/refresh", h.handleRefreshDecision)
	})
}

type beginRequest struct {
	RequesterID string `json:"requesterId"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
}

func (r *beginRequest) Validate() error {
	if r.RequesterID == "" {
		return dErrors.New(dErrors.CodeValidation, "requesterId is required")
	}
	return nil
}

type beginResponse struct {
	VerificationURL string `json:"verificationUrl"`
	CorrelationKey  string `json:"correlationKey"`
}

func (h *Handler) handleBegin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[beginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.svc.BeginVerification(ctx, req.RequesterID, req.FirstName, req.LastName)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUpstream) {
			h.logger.ErrorContext(ctx, "verification start failed upstream",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, beginResponse{
		VerificationURL: result.VerificationURL,
		CorrelationKey:  result.CorrelationKey.String(),
	})
}

func (h *Handler) handleDecisionCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
	if err != nil {
		h.logger.WarnContext(ctx, "callback body unreadable",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable body"))
		return
	}

	ack, err := h.svc.HandleCallback(ctx, body, r.Header.Get("X-HMAC-SIGNATURE"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ack)
}

// handleBrowserReturn serves the user's browser after the hosted flow ends.
// The decision itself arrives on the POST leg; this only hands the user back
// to the conversation.
func (h *Handler) handleBrowserReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ua := useragent.New(r.UserAgent())
	browser, _ := ua.Browser()
	h.logger.InfoContext(ctx, "verification return visit",
		"request_id", requestcontext.RequestID(ctx),
		"browser", browser,
		"os", ua.OS(),
		"mobile", ua.Mobile(),
	)

	http.Redirect(w, r, h.returnURL, http.StatusFound)
}

type sessionResponse struct {
	CorrelationKey    string `json:"correlationKey"`
	ProviderSessionID string `json:"providerSessionId"`
	RequesterID       string `json:"requesterId"`
	Status            string `json:"status"`
	Reason            string `json:"reason,omitempty"`
	ReasonCode        string `json:"reasonCode,omitempty"`
	NotifiedAt        string `json:"notifiedAt,omitempty"`
	CreatedAt         string `json:"createdAt"`
	UpdatedAt         string `json:"updatedAt"`
}

// keyParam extracts and validates the correlation key path parameter.
func keyParam(r *http.Request) (id.CorrelationKey, error) {
	raw := chi.URLParam(r, "key")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return id.ParseCorrelationKey(raw)
}

func (h *Handler) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	session, err := h.svc.SessionStatus(r.Context(), key)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeSession(w, session)
}

// handleRefreshDecision forces a decision poll against the provider, used by
// operators when a callback is suspected lost.
func (h *Handler) handleRefreshDecision(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	session, err := h.svc.RefreshDecision(r.Context(), key)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeSession(w, session)
}

func writeSession(w http.ResponseWriter, session *models.VerificationSession) {
	resp := sessionResponse{
		CorrelationKey:    session.CorrelationKey.String(),
		ProviderSessionID: session.ProviderSessionID.String(),
		RequesterID:       session.RequesterID.String(),
		Status:            string(session.Status),
		Reason:            session.Reason,
		ReasonCode:        session.ReasonCode,
		CreatedAt:         session.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         session.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if session.NotifiedAt != nil {
		resp.NotifiedAt = session.NotifiedAt.UTC().Format(time.RFC3339)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
