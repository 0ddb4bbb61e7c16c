package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthzReportsUptime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthClock(func() time.Time { return now }),
		WithHealthVersion("1.2.3"),
	)
	now = now.Add(45 * time.Second)

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["uptime"] != "45s" {
		t.Fatalf("expected uptime 45s, got %v", body["uptime"])
	}
	if body["version"] != "1.2.3" {
		t.Fatalf("expected version, got %v", body["version"])
	}
}

func TestReadyzPassesWhenChecksSucceed(t *testing.T) {
	h := NewHealthHandlers(
		WithReadinessCheck("storage", func(context.Context) error { return nil }),
	)

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Status != "ok" || body.Checks["storage"] != "ok" {
		t.Fatalf("unexpected readiness payload %+v", body)
	}
}

func TestReadyzFailsWhenCheckFails(t *testing.T) {
	h := NewHealthHandlers(
		WithReadinessCheck("storage", func(context.Context) error { return nil }),
		WithReadinessCheck("catalog", func(context.Context) error { return errors.New("listing failed") }),
	)

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body struct {
		Status  string            `json:"status"`
		Checks  map[string]string `json:"checks"`
		Details []string          `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Status != "degraded" || body.Checks["catalog"] != "failed" {
		t.Fatalf("unexpected readiness payload %+v", body)
	}
	if len(body.Details) != 1 || body.Details[0] != "catalog: listing failed" {
		t.Fatalf("unexpected details %v", body.Details)
	}
}
