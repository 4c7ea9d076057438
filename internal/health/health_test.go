package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler_AllHealthy(t *testing.T) {
	handler := NewHandler("v1.2.3")
	handler.RegisterChecker("storage", CheckerFunc("storage", func() error { return nil }))
	handler.RegisterChecker("kafka", CheckerFunc("kafka", func() error { return nil }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Fatalf("expected healthy status, got %s", resp.Status)
	}
	if resp.Version != "v1.2.3" {
		t.Fatalf("unexpected version: %s", resp.Version)
	}
	if len(resp.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(resp.Checks))
	}
}

func TestHandler_UnhealthyComponent(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("storage", CheckerFunc("storage", func() error {
		return errors.New("connection refused")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy status, got %s", resp.Status)
	}
	if resp.Checks["storage"].Message == "" {
		t.Fatal("expected failure message in check")
	}
}

func TestReadinessHandler(t *testing.T) {
	handler := NewHandler("dev")

	rec := httptest.NewRecorder()
	handler.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with no checkers, got %d", rec.Code)
	}

	handler.RegisterChecker("storage", CheckerFunc("storage", func() error {
		return errors.New("down")
	}))

	rec = httptest.NewRecorder()
	handler.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
