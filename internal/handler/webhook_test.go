package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shelfkit/shelfkit/internal/metrics"
	"github.com/shelfkit/shelfkit/internal/webhook"
)

const testWebhookSecret = "whsec_test"

type mapClaimer struct {
	mu       sync.Mutex
	claimed  map[string]bool
	released []string
	err      error
}

func newMapClaimer() *mapClaimer {
	return &mapClaimer{claimed: make(map[string]bool)}
}

func (c *mapClaimer) ClaimEvent(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.claimed[eventID] {
		return false, nil
	}
	c.claimed[eventID] = true
	return true, nil
}

func (c *mapClaimer) ReleaseEvent(_ context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claimed, eventID)
	c.released = append(c.released, eventID)
	return nil
}

func eventPayload(id, eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"type":%q,"created":%d,"data":{"object":%s}}`,
		id, eventType, time.Now().Unix(), object))
}

func signedRequest(payload []byte, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", webhook.SignPayload(payload, secret, time.Now()))
	return req
}

type webhookFixture struct {
	handler  *WebhookHandler
	claims   *mapClaimer
	recorder *metrics.InMemoryRecorder
	calls    int
	fail     error
}

func newWebhookFixture() *webhookFixture {
	f := &webhookFixture{claims: newMapClaimer(), recorder: metrics.NewInMemory()}
	d := webhook.NewDispatcher()
	d.Register(webhook.EventCheckoutSessionCompleted, func(context.Context, *webhook.Event) error {
		f.calls++
		return f.fail
	})
	f.handler = NewWebhookHandler(WebhookConfig{
		Secret:    testWebhookSecret,
		Tolerance: 5 * time.Minute,
	}, f.claims, d, discardLogger(), f.recorder)
	return f
}

func (f *webhookFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.Receive(rec, req)
	return rec
}

func TestWebhookHandler_Processed(t *testing.T) {
	f := newWebhookFixture()
	payload := eventPayload("evt_1", webhook.EventCheckoutSessionCompleted, `{"id":"cs_1"}`)

	rec := f.serve(signedRequest(payload, testWebhookSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body receivedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || !body.Received {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if f.calls != 1 {
		t.Errorf("expected 1 dispatch, got %d", f.calls)
	}
	if got := f.recorder.Snapshot().WebhookEvents[webhook.EventCheckoutSessionCompleted+"|processed"]; got != 1 {
		t.Errorf("expected processed metric, got %d", got)
	}
}

func TestWebhookHandler_RejectsUniformly(t *testing.T) {
	valid := eventPayload("evt_1", webhook.EventCheckoutSessionCompleted, `{"id":"cs_1"}`)

	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{"wrong secret", func() *http.Request { return signedRequest(valid, "whsec_other") }},
		{"missing header", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(string(valid)))
		}},
		{"tampered body", func() *http.Request {
			tampered := strings.Replace(string(valid), "cs_1", "cs_2", 1)
			req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(tampered))
			req.Header.Set("Stripe-Signature", webhook.SignPayload(valid, testWebhookSecret, time.Now()))
			return req
		}},
		{"stale timestamp", func() *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(string(valid)))
			req.Header.Set("Stripe-Signature", webhook.SignPayload(valid, testWebhookSecret, time.Now().Add(-time.Hour)))
			return req
		}},
		{"malformed payload", func() *http.Request { return signedRequest([]byte(`{"id":`), testWebhookSecret) }},
		{"missing object", func() *http.Request {
			return signedRequest([]byte(`{"id":"evt_1","type":"checkout.session.completed","data":{}}`), testWebhookSecret)
		}},
	}

	var bodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture()
			rec := f.serve(tt.req())

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("expected 500, got %d", rec.Code)
			}
			if f.calls != 0 {
				t.Errorf("rejected event was dispatched")
			}
			if len(f.claims.claimed) != 0 {
				t.Errorf("rejected event was claimed")
			}
			bodies = append(bodies, rec.Body.String())
		})
	}

	for _, b := range bodies[1:] {
		if b != bodies[0] {
			t.Errorf("rejection bodies differ: %q vs %q", b, bodies[0])
		}
	}
}

func TestWebhookHandler_OversizeBody(t *testing.T) {
	f := newWebhookFixture()
	f.handler.cfg.MaxBodyBytes = 16
	payload := eventPayload("evt_1", webhook.EventCheckoutSessionCompleted, `{"id":"cs_1"}`)

	rec := f.serve(signedRequest(payload, testWebhookSecret))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if f.calls != 0 {
		t.Error("oversize event was dispatched")
	}
}

func TestWebhookHandler_Duplicate(t *testing.T) {
	f := newWebhookFixture()
	payload := eventPayload("evt_dup", webhook.EventCheckoutSessionCompleted, `{"id":"cs_1"}`)

	for i := 0; i < 2; i++ {
		if rec := f.serve(signedRequest(payload, testWebhookSecret)); rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	if f.calls != 1 {
		t.Errorf("expected redelivery to be skipped, got %d dispatches", f.calls)
	}
	if got := f.recorder.Snapshot().WebhookEvents[webhook.EventCheckoutSessionCompleted+"|duplicate"]; got != 1 {
		t.Errorf("expected duplicate metric, got %d", got)
	}
}

func TestWebhookHandler_FailureReleasesClaim(t *testing.T) {
	f := newWebhookFixture()
	f.fail = errors.New("db unavailable")
	payload := eventPayload("evt_retry", webhook.EventCheckoutSessionCompleted, `{"id":"cs_1"}`)

	rec := f.serve(signedRequest(payload, testWebhookSecret))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "db unavailable") {
		t.Error("handler error leaked into response")
	}
	if len(f.claims.released) != 1 || f.claims.released[0] != "evt_retry" {
		t.Fatalf("expected claim release, got %v", f.claims.released)
	}

	// The processor's retry must run the handler again.
	f.fail = nil
	if rec := f.serve(signedRequest(payload, testWebhookSecret)); rec.Code != http.StatusOK {
		t.Fatalf("retry: expected 200, got %d", rec.Code)
	}
	if f.calls != 2 {
		t.Errorf("expected retry to dispatch, got %d calls", f.calls)
	}
}

func TestWebhookHandler_IgnoredType(t *testing.T) {
	f := newWebhookFixture()
	payload := eventPayload("evt_other", "invoice.paid", `{"id":"in_1"}`)

	rec := f.serve(signedRequest(payload, testWebhookSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if f.calls != 0 || len(f.claims.claimed) != 0 {
		t.Error("ignored event must not be dispatched or claimed")
	}
	if got := f.recorder.Snapshot().WebhookEvents["invoice.paid|ignored"]; got != 1 {
		t.Errorf("expected ignored metric, got %d", got)
	}
}

func TestWebhookHandler_ClaimStoreDown(t *testing.T) {
	f := newWebhookFixture()
	f.claims.err = errors.New("redis: connection refused")
	payload := eventPayload("evt_open", webhook.EventCheckoutSessionCompleted, `{"id":"cs_1"}`)

	rec := f.serve(signedRequest(payload, testWebhookSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when claim store is down, got %d", rec.Code)
	}
	if f.calls != 1 {
		t.Errorf("expected dispatch despite claim store failure, got %d", f.calls)
	}
}
