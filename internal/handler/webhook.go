package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shelfkit/shelfkit/internal/metrics"
	"github.com/shelfkit/shelfkit/internal/middleware"
	"github.com/shelfkit/shelfkit/internal/webhook"
)

// EventClaimer remembers processed event ids.
type EventClaimer interface {
	ClaimEvent(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string) error
}

// EventDispatcher routes verified events.
type EventDispatcher interface {
	Handles(eventType string) bool
	Dispatch(ctx context.Context, evt *webhook.Event) (bool, error)
}

// WebhookConfig configures the payment event receiver.
type WebhookConfig struct {
	Secret          string
	SignatureHeader string
	Tolerance       time.Duration
	ClaimTTL        time.Duration
	MaxBodyBytes    int64
}

// WebhookHandler receives signed payment processor events.
type WebhookHandler struct {
	cfg        WebhookConfig
	claims     EventClaimer // nil disables redelivery detection
	dispatcher EventDispatcher
	logger     *slog.Logger
	metrics    metrics.Recorder
	now        func() time.Time
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(cfg WebhookConfig, claims EventClaimer, dispatcher EventDispatcher, logger *slog.Logger, recorder metrics.Recorder) *WebhookHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = "Stripe-Signature"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 24 * time.Hour
	}
	return &WebhookHandler{
		cfg:        cfg,
		claims:     claims,
		dispatcher: dispatcher,
		logger:     logger.With("component", "webhook"),
		metrics:    recorder,
		now:        time.Now,
	}
}

type receivedResponse struct {
	Received bool `json:"received"`
}

// Receive handles POST /webhooks/payments.
//
// Signature and payload failures answer with one generic 500 and touch
// nothing. A redelivered event id is acknowledged without reprocessing. When
// a handler fails the claim is released so the processor's retry runs again.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	requestID := middleware.GetRequestID(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxBodyBytes+1))
	if err != nil || int64(len(body)) > h.cfg.MaxBodyBytes {
		h.reject(w, requestID, "unreadable_body", err)
		return
	}

	evt, err := webhook.ConstructEvent(body, r.Header.Get(h.cfg.SignatureHeader), h.cfg.Secret, h.cfg.Tolerance)
	if err != nil {
		reason := "malformed_payload"
		var sigErr *webhook.SignatureError
		if errors.As(err, &sigErr) {
			reason = "invalid_signature:" + sigErr.Reason
		}
		h.reject(w, requestID, reason, nil)
		return
	}

	log := h.logger.With("event_id", evt.ID, "event_type", evt.Type, "request_id", requestID)

	if !h.dispatcher.Handles(evt.Type) {
		h.metrics.IncWebhookEvent(evt.Type, "ignored")
		log.Debug("webhook_ignored")
		writeJSON(w, http.StatusOK, receivedResponse{Received: true})
		return
	}

	claimed := false
	if h.claims != nil {
		ok, err := h.claims.ClaimEvent(r.Context(), evt.ID, h.cfg.ClaimTTL)
		switch {
		case err != nil:
			log.Warn("webhook_claim_unavailable", "error", err)
		case !ok:
			h.metrics.IncWebhookEvent(evt.Type, "duplicate")
			log.Info("webhook_duplicate")
			writeJSON(w, http.StatusOK, receivedResponse{Received: true})
			return
		default:
			claimed = true
		}
	}

	if _, err := h.dispatcher.Dispatch(r.Context(), evt); err != nil {
		if claimed {
			// The request context may already be gone; the release must still happen.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
			if relErr := h.claims.ReleaseEvent(ctx, evt.ID); relErr != nil {
				log.Error("webhook_release_failed", "error", relErr)
			}
			cancel()
		}
		h.metrics.IncWebhookEvent(evt.Type, "failed")
		h.metrics.ObserveWebhookDuration(h.now().Sub(start))
		log.Error("webhook_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	h.metrics.IncWebhookEvent(evt.Type, "processed")
	h.metrics.ObserveWebhookDuration(h.now().Sub(start))
	log.Info("webhook_processed", "duration_ms", h.now().Sub(start).Milliseconds())
	writeJSON(w, http.StatusOK, receivedResponse{Received: true})
}

// reject answers every verification failure identically.
func (h *WebhookHandler) reject(w http.ResponseWriter, requestID, reason string, err error) {
	h.metrics.IncWebhookEvent("unverified", "rejected")
	attrs := []any{"reason", reason, "request_id", requestID}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	h.logger.Warn("webhook_rejected", attrs...)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
