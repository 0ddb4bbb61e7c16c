package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/netproxy/storefront/internal/domain"
	"github.com/netproxy/storefront/internal/services"
)

func newCheckoutFixture(t *testing.T, provider services.PaymentSessionProvider) (chi.Router, *services.CartStore) {
	t.Helper()
	cart := newTestCart(t)
	if provider == nil {
		provider = &stubPaymentProvider{}
	}
	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Cart:     cart,
		Payments: provider,
		Clock:    testClock,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	h := NewCheckoutHandlers(checkout)
	r := chi.NewRouter()
	r.Route("/checkout", h.Routes)
	return r, cart
}

func seedCheckoutCart(cart *services.CartStore) {
	cart.AddToCart(context.Background(), services.AddToCartCommand{
		Tab:      domain.TabRotating,
		Plan:     rotatingPlan("plan-rot", 500),
		Quantity: 2,
	})
}

func TestCreateSessionReturnsPaymentHandle(t *testing.T) {
	r, cart := newCheckoutFixture(t, nil)
	seedCheckoutCart(cart)

	body := strings.NewReader(`{"tab":"rotating","successUrl":"https://shop.example/ok","cancelUrl":"https://shop.example/no"}`)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/checkout/session", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp checkoutSessionPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.SessionID != "sess_1" || resp.RedirectURL == "" {
		t.Fatalf("expected session handle, got %+v", resp)
	}
	if resp.Total != 1000 || len(resp.ItemIDs) != 1 {
		t.Fatalf("unexpected totals %+v", resp)
	}
}

func TestCreateSessionRejectsUnknownTab(t *testing.T) {
	r, cart := newCheckoutFixture(t, nil)
	seedCheckoutCart(cart)

	body := strings.NewReader(`{"tab":"residentials","successUrl":"https://a","cancelUrl":"https://b"}`)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/checkout/session", body))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCreateSessionEmptyCartIs422(t *testing.T) {
	r, _ := newCheckoutFixture(t, nil)

	body := strings.NewReader(`{"tab":"rotating","successUrl":"https://a","cancelUrl":"https://b"}`)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/checkout/session", body))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestCreateSessionProviderFailureIs502(t *testing.T) {
	r, cart := newCheckoutFixture(t, &stubPaymentProvider{err: errors.New("psp down")})
	seedCheckoutCart(cart)

	body := strings.NewReader(`{"tab":"rotating","successUrl":"https://a","cancelUrl":"https://b"}`)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/checkout/session", body))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}

func TestCompletePrunesPurchasedItems(t *testing.T) {
	r, cart := newCheckoutFixture(t, nil)
	seedCheckoutCart(cart)

	body := strings.NewReader(`{"tab":"rotating","successUrl":"https://a","cancelUrl":"https://b"}`)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/checkout/session", body))
	var session checkoutSessionPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &session); err != nil {
		t.Fatalf("failed to parse session: %v", err)
	}

	payload, err := json.Marshal(completeRequest{Tab: "rotating", ItemIDs: session.ItemIDs})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/checkout/complete", strings.NewReader(string(payload))))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
	if cart.ItemCount() != 0 {
		t.Fatalf("expected purchased items pruned, count %d", cart.ItemCount())
	}
}

func TestCompleteRequiresItemIDs(t *testing.T) {
	r, _ := newCheckoutFixture(t, nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/checkout/complete", strings.NewReader(`{"tab":"rotating"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
