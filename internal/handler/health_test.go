package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

func readyz(t *testing.T, h *HealthHandler) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return rec, resp
}

func TestHealthHandler_Healthz(t *testing.T) {
	h := NewHealthHandler(&mockHealthChecker{err: errors.New("down")}, nil, discardLogger())

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("liveness must not depend on dependencies, got %d", rec.Code)
	}
}

func TestHealthHandler_Readyz_AllHealthy(t *testing.T) {
	h := NewHealthHandler(&mockHealthChecker{}, &mockHealthChecker{}, discardLogger())

	rec, resp := readyz(t, h)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if resp.Status != "ok" || resp.Checks["postgres"] != "ok" || resp.Checks["redis"] != "ok" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHealthHandler_Readyz_DatabaseUnhealthy(t *testing.T) {
	db := &mockHealthChecker{err: errors.New("dial tcp 10.0.0.5:5432: connection refused")}
	h := NewHealthHandler(db, &mockHealthChecker{}, discardLogger())

	rec, resp := readyz(t, h)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got %s", resp.Status)
	}
	if resp.Checks["postgres"] != "error" {
		t.Errorf("unexpected postgres check: %s", resp.Checks["postgres"])
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Error("readiness response leaked dependency error details")
	}
}

func TestHealthHandler_Readyz_NoDependencies(t *testing.T) {
	h := NewHealthHandler(nil, nil, discardLogger())

	rec, resp := readyz(t, h)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if resp.Checks["postgres"] != "not configured" {
		t.Errorf("expected 'not configured', got %s", resp.Checks["postgres"])
	}
}
