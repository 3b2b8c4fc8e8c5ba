package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLogging_CredentialsNeverLogged(t *testing.T) {
	t.Parallel()

	secrets := []string{
		"mk_live_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b",
		"t=1700000000,v1=5257a869e7ecebeda32affa62cdca3fa51cad7e77a0e56ff536d0ce8e108d8bd",
		"Bearer",
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", nil)
	req.Header.Set("Authorization", "Bearer "+secrets[0])
	req.Header.Set("Stripe-Signature", secrets[1])
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, s := range secrets {
		if strings.Contains(out, s) {
			t.Errorf("log output contains %q", s)
		}
	}
}

func TestLogging_BasicFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("done"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/products", nil)
	req.Header.Set("User-Agent", "TestBrowser/2.0")
	req.Header.Set(RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, field := range []string{
		`"msg":"http_request"`,
		`"method":"POST"`,
		`"path":"/products"`,
		`"status_code":201`,
		`"bytes":4`,
		`"request_id":"req-42"`,
		`"user_agent":"TestBrowser/2.0"`,
	} {
		if !strings.Contains(out, field) {
			t.Errorf("expected %s in %s", field, out)
		}
	}
}

func TestLogging_StatusLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		wantLevel  string
	}{
		{"success", http.StatusOK, "INFO"},
		{"not found", http.StatusNotFound, "WARN"},
		{"rate limited", http.StatusTooManyRequests, "WARN"},
		{"internal error", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

			if !strings.Contains(buf.String(), `"level":"`+tt.wantLevel+`"`) {
				t.Errorf("want level %s for %d, got %s", tt.wantLevel, tt.statusCode, buf.String())
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	wrapped := wrapResponseWriter(rec)
	_, _ = wrapped.Write([]byte("hello"))
	wrapped.WriteHeader(http.StatusInternalServerError)

	if wrapped.status != http.StatusOK {
		t.Errorf("status = %d, want %d", wrapped.status, http.StatusOK)
	}
	if wrapped.bytes != 5 {
		t.Errorf("bytes = %d, want 5", wrapped.bytes)
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		inbound  string
		wantKeep bool
	}{
		{"none generates", "", false},
		{"well formed is kept", "abc-123.x_y", true},
		{"spaces are replaced", "bad id", false},
		{"too long is replaced", strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.inbound != "" {
				req.Header.Set(RequestIDHeader, tt.inbound)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if seen == "" {
				t.Fatal("request id missing from context")
			}
			if got := rec.Header().Get(RequestIDHeader); got != seen {
				t.Errorf("header %q != context %q", got, seen)
			}
			if (seen == tt.inbound) != tt.wantKeep {
				t.Errorf("request id = %q, inbound %q, keep = %v", seen, tt.inbound, tt.wantKeep)
			}
		})
	}
}

func TestRecoverer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "kaboom") {
		t.Error("panic value leaked into response")
	}
	if !strings.Contains(buf.String(), "panic_recovered") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}
