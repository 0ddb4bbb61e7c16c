package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/netproxy/storefront/internal/domain"
)

type stubPlanSource struct {
	fetchPlanFunc  func(ctx context.Context, planID string) (Plan, error)
	fetchPlansFunc func(ctx context.Context) ([]Plan, error)
	planCalls      int
	listCalls      int
}

func (s *stubPlanSource) FetchPlan(ctx context.Context, planID string) (Plan, error) {
	s.planCalls++
	if s.fetchPlanFunc != nil {
		return s.fetchPlanFunc(ctx, planID)
	}
	return Plan{}, errors.New("not stubbed")
}

func (s *stubPlanSource) FetchPlans(ctx context.Context) ([]Plan, error) {
	s.listCalls++
	if s.fetchPlansFunc != nil {
		return s.fetchPlansFunc(ctx)
	}
	return nil, errors.New("not stubbed")
}

func newTestCatalog(t *testing.T, source PlanSource, clock func() time.Time, ttl time.Duration) *CatalogService {
	t.Helper()
	if clock == nil {
		clock = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	}
	catalog, err := NewCatalogService(CatalogServiceDeps{
		Source:   source,
		Clock:    clock,
		CacheTTL: ttl,
	})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return catalog
}

func TestCatalogPlanIsCached(t *testing.T) {
	source := &stubPlanSource{fetchPlanFunc: func(_ context.Context, planID string) (Plan, error) {
		return domain.Plan{ID: planID, Name: "Rotating", Price: 300}, nil
	}}
	catalog := newTestCatalog(t, source, nil, time.Minute)
	ctx := context.Background()

	first, err := catalog.Plan(ctx, "plan-1")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	second, err := catalog.Plan(ctx, "plan-1")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if first.ID != second.ID || source.planCalls != 1 {
		t.Fatalf("expected one upstream fetch, got %d", source.planCalls)
	}
}

func TestCatalogPlanCacheExpires(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source := &stubPlanSource{fetchPlanFunc: func(_ context.Context, planID string) (Plan, error) {
		return domain.Plan{ID: planID}, nil
	}}
	catalog := newTestCatalog(t, source, func() time.Time { return now }, time.Minute)
	ctx := context.Background()

	if _, err := catalog.Plan(ctx, "plan-1"); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := catalog.Plan(ctx, "plan-1"); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if source.planCalls != 2 {
		t.Fatalf("expected expired entry refetched, got %d calls", source.planCalls)
	}
}

func TestCatalogPlanRejectsBlankID(t *testing.T) {
	catalog := newTestCatalog(t, &stubPlanSource{}, nil, time.Minute)
	if _, err := catalog.Plan(context.Background(), "  "); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestCatalogPlanPropagatesFetchFailure(t *testing.T) {
	upstream := errors.New("catalog down")
	source := &stubPlanSource{fetchPlanFunc: func(context.Context, string) (Plan, error) {
		return Plan{}, upstream
	}}
	catalog := newTestCatalog(t, source, nil, time.Minute)

	if _, err := catalog.Plan(context.Background(), "plan-1"); !errors.Is(err, upstream) {
		t.Fatalf("expected wrapped upstream error, got %v", err)
	}
}

func TestCatalogListingSeedsPlanCache(t *testing.T) {
	source := &stubPlanSource{fetchPlansFunc: func(context.Context) ([]Plan, error) {
		return []Plan{
			{ID: "plan-1", Name: "Rotating"},
			{ID: "plan-2", Name: "Static"},
		}, nil
	}}
	catalog := newTestCatalog(t, source, nil, time.Minute)
	ctx := context.Background()

	plans, err := catalog.Plans(ctx)
	if err != nil {
		t.Fatalf("Plans: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}

	if _, err := catalog.Plan(ctx, "plan-2"); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if source.planCalls != 0 {
		t.Fatalf("expected listing to seed the plan cache, got %d plan fetches", source.planCalls)
	}

	if _, err := catalog.Plans(ctx); err != nil {
		t.Fatalf("Plans: %v", err)
	}
	if source.listCalls != 1 {
		t.Fatalf("expected one listing fetch, got %d", source.listCalls)
	}
}

func TestCatalogInvalidateDropsCache(t *testing.T) {
	source := &stubPlanSource{fetchPlanFunc: func(_ context.Context, planID string) (Plan, error) {
		return domain.Plan{ID: planID}, nil
	}}
	catalog := newTestCatalog(t, source, nil, time.Minute)
	ctx := context.Background()

	if _, err := catalog.Plan(ctx, "plan-1"); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	catalog.Invalidate()
	if _, err := catalog.Plan(ctx, "plan-1"); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if source.planCalls != 2 {
		t.Fatalf("expected refetch after invalidation, got %d calls", source.planCalls)
	}
}
