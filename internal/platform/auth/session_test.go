package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/netproxy/storefront/internal/platform/requestctx"
)

func fixedClock() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestNewSessionVerifierRequiresSecret(t *testing.T) {
	if _, err := NewSessionVerifier("  ", fixedClock); err == nil {
		t.Fatalf("expected error for blank secret")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	verifier, err := NewSessionVerifier("secret-1", fixedClock)
	if err != nil {
		t.Fatalf("NewSessionVerifier: %v", err)
	}
	token, err := verifier.Issue("user-42", time.Hour, fixedClock)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	userID, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "user-42" {
		t.Fatalf("expected user-42, got %q", userID)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	verifier, err := NewSessionVerifier("secret-1", fixedClock)
	if err != nil {
		t.Fatalf("NewSessionVerifier: %v", err)
	}
	issuedAt := func() time.Time { return fixedClock().Add(-2 * time.Hour) }
	token, err := verifier.Issue("user-42", time.Hour, issuedAt)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatalf("expected expired token rejected")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer, _ := NewSessionVerifier("secret-1", fixedClock)
	verifier, _ := NewSessionVerifier("secret-2", fixedClock)
	token, err := issuer.Issue("user-42", time.Hour, fixedClock)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatalf("expected token signed with another secret rejected")
	}
}

func TestMiddlewareAnonymousPassesThrough(t *testing.T) {
	verifier, _ := NewSessionVerifier("secret-1", fixedClock)

	var gotUser string
	handler := verifier.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = requestctx.UserID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotUser != "" {
		t.Fatalf("expected anonymous identity, got %q", gotUser)
	}
}

func TestMiddlewareResolvesIdentity(t *testing.T) {
	verifier, _ := NewSessionVerifier("secret-1", fixedClock)
	token, err := verifier.Issue("user-42", time.Hour, fixedClock)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var gotUser string
	handler := verifier.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = requestctx.UserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotUser != "user-42" {
		t.Fatalf("expected user-42, got %q", gotUser)
	}
}

func TestMiddlewareRejectsBadToken(t *testing.T) {
	verifier, _ := NewSessionVerifier("secret-1", fixedClock)

	handler := verifier.Middleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run for invalid tokens")
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
