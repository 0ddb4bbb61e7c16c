package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/netproxy/storefront/internal/services"
)

func TestPricingClientQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/plans/plan-1/calculate-price" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		var body struct {
			Country string `json:"country"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Country != "DE" {
			t.Fatalf("unexpected country %q", body.Country)
		}
		json.NewEncoder(w).Encode(map[string]any{"price": 1200, "currency": "USD"})
	}))
	defer server.Close()

	client, err := NewPricingClient(Config{BaseURL: server.URL, APIToken: "token-1"})
	if err != nil {
		t.Fatalf("NewPricingClient: %v", err)
	}
	total, err := client.Quote(context.Background(), "plan-1", "DE")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if total != 1200 {
		t.Fatalf("expected 1200, got %d", total)
	}
}

func TestPricingClientQuoteUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"message": "pricing backend down"})
	}))
	defer server.Close()

	client, err := NewPricingClient(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewPricingClient: %v", err)
	}
	if _, err := client.Quote(context.Background(), "plan-1", "DE"); !errors.Is(err, ErrUpstreamStatus) {
		t.Fatalf("expected ErrUpstreamStatus, got %v", err)
	}
}

func TestPricingClientRequiresPlanID(t *testing.T) {
	client, err := NewPricingClient(Config{BaseURL: "http://localhost"})
	if err != nil {
		t.Fatalf("NewPricingClient: %v", err)
	}
	if _, err := client.Quote(context.Background(), " ", "DE"); err == nil {
		t.Fatalf("expected error for blank plan id")
	}
}

func TestCatalogClientFetchPlan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plans/plan-9" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":       "plan-9",
			"name":     "Premium ISP",
			"type":     "static",
			"price":    300,
			"currency": "USD",
			"metadata": map[string]string{"proxy_type": "premium isp", "period": "30d"},
		})
	}))
	defer server.Close()

	client, err := NewCatalogClient(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewCatalogClient: %v", err)
	}
	plan, err := client.FetchPlan(context.Background(), "plan-9")
	if err != nil {
		t.Fatalf("FetchPlan: %v", err)
	}
	if plan.ID != "plan-9" || plan.Metadata.ProxyType != "premium isp" || plan.Metadata.Period != "30d" {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestCatalogClientMapsMissingPlanTo404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "no such plan"})
	}))
	defer server.Close()

	client, err := NewCatalogClient(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewCatalogClient: %v", err)
	}
	if _, err := client.FetchPlan(context.Background(), "plan-gone"); !errors.Is(err, services.ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestCatalogClientFetchPlans(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plans" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"plans": []map[string]any{
				{"id": "plan-1", "type": "rotating"},
				{"id": "plan-2", "type": "static"},
			},
		})
	}))
	defer server.Close()

	client, err := NewCatalogClient(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewCatalogClient: %v", err)
	}
	plans, err := client.FetchPlans(context.Background())
	if err != nil {
		t.Fatalf("FetchPlans: %v", err)
	}
	if len(plans) != 2 || plans[0].ID != "plan-1" {
		t.Fatalf("unexpected plans %+v", plans)
	}
}

func TestCouponClientValidateCoupon(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/coupons/validate" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Code        string `json:"code"`
			OrderAmount int64  `json:"order_amount"`
			PlanID      string `json:"plan_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Code != "SAVE10" || body.OrderAmount != 900 || body.PlanID != "plan-1" {
			t.Fatalf("unexpected body %+v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"coupon":          map[string]any{"code": "SAVE10", "percent": 10},
			"discount_amount": 90,
		})
	}))
	defer server.Close()

	client, err := NewCouponClient(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewCouponClient: %v", err)
	}
	validation, err := client.ValidateCoupon(context.Background(), "SAVE10", 900, "plan-1")
	if err != nil {
		t.Fatalf("ValidateCoupon: %v", err)
	}
	if validation.Coupon.Code != "SAVE10" || validation.DiscountAmount != 90 {
		t.Fatalf("unexpected validation %+v", validation)
	}
}

func TestCouponClientRejectsBlankCode(t *testing.T) {
	client, err := NewCouponClient(Config{BaseURL: "http://localhost"})
	if err != nil {
		t.Fatalf("NewCouponClient: %v", err)
	}
	if _, err := client.ValidateCoupon(context.Background(), "  ", 100, ""); err == nil {
		t.Fatalf("expected error for blank code")
	}
}

func TestNewClientsRequireBaseURL(t *testing.T) {
	if _, err := NewPricingClient(Config{}); err == nil {
		t.Fatalf("expected error without base url")
	}
	if _, err := NewCatalogClient(Config{}); err == nil {
		t.Fatalf("expected error without base url")
	}
	if _, err := NewCouponClient(Config{}); err == nil {
		t.Fatalf("expected error without base url")
	}
}
