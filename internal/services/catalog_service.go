package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultCatalogCacheTTL = 5 * time.Minute

var (
	errCatalogSourceRequired = errors.New("catalog service: plan source is required")
	errCatalogClockRequired  = errors.New("catalog service: clock is required")

	// ErrPlanNotFound indicates the catalog has no plan with the given id.
	ErrPlanNotFound = errors.New("plan not found")
)

// CatalogServiceDeps wires the remote plan source behind the cache.
type CatalogServiceDeps struct {
	Source   PlanSource
	Clock    func() time.Time
	CacheTTL time.Duration
	Logger   EventLogger
}

// CatalogService fronts the remote plan catalog with a short-lived cache.
// Plans change rarely and cart additions read them often, so a few minutes
// of staleness is an acceptable trade against hammering the upstream.
type CatalogService struct {
	source PlanSource
	cache  *planCache
	logger EventLogger
}

// NewCatalogService validates dependencies.
func NewCatalogService(deps CatalogServiceDeps) (*CatalogService, error) {
	if deps.Source == nil {
		return nil, errCatalogSourceRequired
	}
	if deps.Clock == nil {
		return nil, errCatalogClockRequired
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultCatalogCacheTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	now := func() time.Time { return deps.Clock().UTC() }
	return &CatalogService{
		source: deps.Source,
		cache:  newPlanCache(ttl, now),
		logger: logger,
	}, nil
}

// Plan returns a single plan, served from cache when fresh.
func (s *CatalogService) Plan(ctx context.Context, planID string) (Plan, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return Plan{}, ErrPlanNotFound
	}
	if plan, ok := s.cache.GetPlan(planID); ok {
		return plan, nil
	}

	plan, err := s.source.FetchPlan(ctx, planID)
	if err != nil {
		s.logger(ctx, "catalog.fetch_failed", map[string]any{
			"planId": planID,
			"error":  err.Error(),
		})
		return Plan{}, fmt.Errorf("fetch plan %q: %w", planID, err)
	}
	s.cache.PutPlan(plan)
	return plan, nil
}

// Plans returns the full catalog listing, served from cache when fresh.
func (s *CatalogService) Plans(ctx context.Context) ([]Plan, error) {
	if plans, ok := s.cache.GetListing(); ok {
		return plans, nil
	}

	plans, err := s.source.FetchPlans(ctx)
	if err != nil {
		s.logger(ctx, "catalog.fetch_failed", map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("fetch plans: %w", err)
	}
	s.cache.PutListing(plans)
	return plans, nil
}

// Invalidate drops every cached plan and listing.
func (s *CatalogService) Invalidate() {
	s.cache.Reset()
}

type planCache struct {
	ttl time.Duration
	now func() time.Time
	mu  sync.RWMutex

	plans   map[string]planCacheEntry
	listing []Plan
	listAt  time.Time
}

type planCacheEntry struct {
	plan    Plan
	expires time.Time
}

func newPlanCache(ttl time.Duration, now func() time.Time) *planCache {
	return &planCache{
		ttl:   ttl,
		now:   now,
		plans: make(map[string]planCacheEntry),
	}
}

func (c *planCache) GetPlan(planID string) (Plan, bool) {
	c.mu.RLock()
	entry, ok := c.plans[planID]
	c.mu.RUnlock()
	if !ok {
		return Plan{}, false
	}
	if c.now().After(entry.expires) {
		c.mu.Lock()
		delete(c.plans, planID)
		c.mu.Unlock()
		return Plan{}, false
	}
	return entry.plan, true
}

func (c *planCache) PutPlan(plan Plan) {
	c.mu.Lock()
	c.plans[plan.ID] = planCacheEntry{plan: plan, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *planCache) GetListing() ([]Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listing == nil || c.now().After(c.listAt.Add(c.ttl)) {
		return nil, false
	}
	out := make([]Plan, len(c.listing))
	copy(out, c.listing)
	return out, true
}

func (c *planCache) PutListing(plans []Plan) {
	listing := make([]Plan, len(plans))
	copy(listing, plans)

	c.mu.Lock()
	c.listing = listing
	c.listAt = c.now()
	for _, plan := range plans {
		c.plans[plan.ID] = planCacheEntry{plan: plan, expires: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()
}

func (c *planCache) Reset() {
	c.mu.Lock()
	c.plans = make(map[string]planCacheEntry)
	c.listing = nil
	c.listAt = time.Time{}
	c.mu.Unlock()
}
