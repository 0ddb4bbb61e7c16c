package handlers

import (
	"context"
	"testing"
	"time"

	domain "github.com/netproxy/storefront/internal/domain"
	"github.com/netproxy/storefront/internal/services"
)

type stubCartRepo struct{}

func (s *stubCartRepo) Load(context.Context) (domain.CartState, bool, error) {
	return domain.NewCartState(), false, nil
}

func (s *stubCartRepo) Save(context.Context, domain.CartState) error { return nil }

func (s *stubCartRepo) Clear(context.Context) error { return nil }

type stubPlanSource struct {
	plans map[string]domain.Plan
}

func (s *stubPlanSource) FetchPlan(_ context.Context, planID string) (domain.Plan, error) {
	if plan, ok := s.plans[planID]; ok {
		return plan, nil
	}
	return domain.Plan{}, services.ErrPlanNotFound
}

func (s *stubPlanSource) FetchPlans(context.Context) ([]domain.Plan, error) {
	out := make([]domain.Plan, 0, len(s.plans))
	for _, plan := range s.plans {
		out = append(out, plan)
	}
	return out, nil
}

type stubCouponAPI struct {
	validateFunc func(ctx context.Context, code string, orderAmount int64, planID string) (services.CouponValidation, error)
}

func (s *stubCouponAPI) ValidateCoupon(ctx context.Context, code string, orderAmount int64, planID string) (services.CouponValidation, error) {
	if s.validateFunc != nil {
		return s.validateFunc(ctx, code, orderAmount, planID)
	}
	return services.CouponValidation{
		Coupon:         domain.Coupon{Code: code},
		DiscountAmount: 50,
	}, nil
}

type stubPricer struct {
	unit int64
}

func (s *stubPricer) UnitPrice(context.Context, string, string, int) int64 {
	if s.unit > 0 {
		return s.unit
	}
	return 100
}

type stubPaymentProvider struct {
	requests []services.PaymentSessionRequest
	err      error
}

func (s *stubPaymentProvider) CreateSession(_ context.Context, req services.PaymentSessionRequest) (services.PaymentSession, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return services.PaymentSession{}, s.err
	}
	return services.PaymentSession{ID: "sess_1", RedirectURL: "https://pay.example/sess_1"}, nil
}

func testClock() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func newTestCart(t *testing.T) *services.CartStore {
	t.Helper()
	cart, err := services.NewCartStore(context.Background(), services.CartStoreDeps{
		Repository: &stubCartRepo{},
		Clock:      testClock,
	})
	if err != nil {
		t.Fatalf("NewCartStore: %v", err)
	}
	return cart
}

func newTestCatalog(t *testing.T, plans ...domain.Plan) *services.CatalogService {
	t.Helper()
	byID := make(map[string]domain.Plan, len(plans))
	for _, plan := range plans {
		byID[plan.ID] = plan
	}
	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Source: &stubPlanSource{plans: byID},
		Clock:  testClock,
	})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return catalog
}

func newTestCoupons(t *testing.T, cart *services.CartStore, api services.CouponAPI) *services.CouponService {
	t.Helper()
	if api == nil {
		api = &stubCouponAPI{}
	}
	coupons, err := services.NewCouponService(services.CouponServiceDeps{
		Coupons: api,
		Cart:    cart,
		Clock:   testClock,
	})
	if err != nil {
		t.Fatalf("NewCouponService: %v", err)
	}
	return coupons
}

func rotatingPlan(id string, price int64) domain.Plan {
	return domain.Plan{ID: id, Name: "Rotating " + id, Type: domain.PlanTypeRotating, Price: price}
}
