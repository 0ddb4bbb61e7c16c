package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	domain "github.com/netproxy/storefront/internal/domain"
	"github.com/netproxy/storefront/internal/repositories"
)

var (
	errCartStoreRepositoryRequired = errors.New("cart store: repository is required")
	errCartStoreClockRequired      = errors.New("cart store: clock is required")
)

// CartStoreDeps wires the persistence and clock dependencies for the cart
// store. The store is handed to consumers explicitly; constructing one
// without its dependencies fails immediately rather than at first use.
type CartStoreDeps struct {
	Repository repositories.CartRepository
	Clock      func() time.Time
	Logger     EventLogger
}

// CartStore is the single source of truth for what the user intends to
// purchase: a tab-partitioned item list plus one cart-wide coupon. Every
// mutation is atomic under the store mutex and written through to the
// repository; persistence failures are logged and never roll back the
// in-memory state, which stays authoritative for the session.
type CartStore struct {
	mu       sync.Mutex
	state    domain.CartState
	identity string

	repo   repositories.CartRepository
	now    func() time.Time
	logger EventLogger
}

// NewCartStore validates dependencies and hydrates the store from persisted
// state exactly once.
func NewCartStore(ctx context.Context, deps CartStoreDeps) (*CartStore, error) {
	if deps.Repository == nil {
		return nil, errCartStoreRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCartStoreClockRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	store := &CartStore{
		state:  domain.NewCartState(),
		repo:   deps.Repository,
		now:    func() time.Time { return deps.Clock().UTC() },
		logger: logger,
	}

	state, existed, err := deps.Repository.Load(ctx)
	if err != nil {
		// A broken blob must not brick the storefront; start empty.
		logger(ctx, "cart.hydrate_failed", map[string]any{"error": err.Error()})
	} else if existed {
		store.state = state
	}
	return store, nil
}

// SetIdentity records the authenticated identity currently owning the
// session. Any change, including anonymous to authenticated and back, resets
// the cart wholesale so state never leaks across identities.
func (s *CartStore) SetIdentity(ctx context.Context, userID string) {
	trimmed := strings.TrimSpace(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == trimmed {
		return
	}
	previous := s.identity
	s.identity = trimmed
	s.state = domain.NewCartState()
	s.persist(ctx)
	s.logger(ctx, "cart.identity_reset", map[string]any{
		"hadIdentity": previous != "",
		"hasIdentity": trimmed != "",
	})
}

// AddToCart inserts a plan configuration into a tab. Adding a configuration
// that is already present collapses into a quantity increment on the existing
// line; the existing price override is kept. Quantities below one are a
// no-op.
func (s *CartStore) AddToCart(ctx context.Context, cmd AddToCartCommand) {
	if cmd.Quantity < 1 {
		return
	}
	id := domain.CartItemID(cmd.Plan.ID, cmd.Country, cmd.Options)

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.state.ItemsByTab[cmd.Tab]
	for i := range items {
		if items[i].ID == id {
			items[i].Quantity += cmd.Quantity
			s.persist(ctx)
			return
		}
	}

	item := domain.CartItem{
		ID:         id,
		Plan:       cmd.Plan,
		Quantity:   cmd.Quantity,
		Country:    strings.TrimSpace(cmd.Country),
		Duration:   strings.TrimSpace(cmd.Options.Duration),
		SpeedLimit: strings.TrimSpace(cmd.Options.SpeedLimit),
		StaticType: strings.TrimSpace(cmd.Options.StaticType),
		AddedAt:    s.now(),
	}
	if cmd.CalculatedPrice != nil {
		price := *cmd.CalculatedPrice
		item.CalculatedPrice = &price
	}
	if cmd.Boundary != nil {
		boundary := *cmd.Boundary
		item.Boundary = &boundary
	}
	s.state.ItemsByTab[cmd.Tab] = append(items, item)
	s.persist(ctx)
}

// RemoveItem deletes the item when present; removing an absent item is a
// no-op.
func (s *CartStore) RemoveItem(ctx context.Context, tab CartTab, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeLocked(tab, itemID) {
		s.clearCouponIfEmptyLocked(ctx)
		s.persist(ctx)
	}
}

// UpdateQuantity sets the item quantity in place. Reducing below one is
// defined as removal.
func (s *CartStore) UpdateQuantity(ctx context.Context, tab CartTab, itemID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		if s.removeLocked(tab, itemID) {
			s.clearCouponIfEmptyLocked(ctx)
			s.persist(ctx)
		}
		return
	}

	items := s.state.ItemsByTab[tab]
	for i := range items {
		if items[i].ID == itemID {
			items[i].Quantity = quantity
			s.persist(ctx)
			return
		}
	}
}

// UpdateCartItem atomically updates quantity and the optional price override
// in one transition, so no observer sees the quantity change without its
// matching price.
func (s *CartStore) UpdateCartItem(ctx context.Context, tab CartTab, itemID string, quantity int, calculatedPrice *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		if s.removeLocked(tab, itemID) {
			s.clearCouponIfEmptyLocked(ctx)
			s.persist(ctx)
		}
		return
	}

	items := s.state.ItemsByTab[tab]
	for i := range items {
		if items[i].ID == itemID {
			items[i].Quantity = quantity
			if calculatedPrice != nil {
				price := *calculatedPrice
				items[i].CalculatedPrice = &price
			}
			s.persist(ctx)
			return
		}
	}
}

// UpdateCountry changes the country discriminator of an existing line in
// place. The identity key is deliberately not recomputed: this mutates the
// entry, it does not re-key it.
func (s *CartStore) UpdateCountry(ctx context.Context, tab CartTab, itemID, country string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.state.ItemsByTab[tab]
	for i := range items {
		if items[i].ID == itemID {
			items[i].Country = strings.TrimSpace(country)
			s.persist(ctx)
			return
		}
	}
}

// ClearCart empties every tab and drops the coupon.
func (s *CartStore) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.NewCartState()
	s.persist(ctx)
}

// ClearTabCart empties a single tab. Emptying the last populated tab also
// clears the coupon so a discount never survives over an empty cart.
func (s *CartStore) ClearTabCart(ctx context.Context, tab CartTab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ItemsByTab[tab] = []domain.CartItem{}
	s.clearCouponIfEmptyLocked(ctx)
	s.persist(ctx)
}

// ClearByItemIDs removes the given subset from a tab, preserving anything
// added concurrently. Used after checkout to prune only purchased lines.
func (s *CartStore) ClearByItemIDs(ctx context.Context, tab CartTab, itemIDs []string) {
	if len(itemIDs) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// An unknown tab means the ids came from a whole-cart checkout and may
	// span every tab.
	tabs := []CartTab{tab}
	if _, ok := domain.ParseCartTab(string(tab)); !ok {
		tabs = domain.CartTabs()
	}
	for _, t := range tabs {
		items := s.state.ItemsByTab[t]
		kept := items[:0]
		for _, item := range items {
			if _, gone := drop[item.ID]; !gone {
				kept = append(kept, item)
			}
		}
		s.state.ItemsByTab[t] = kept
	}
	s.clearCouponIfEmptyLocked(ctx)
	s.persist(ctx)
}

// ApplyCoupon records an already-validated coupon cart-wide. An empty cart
// never carries a coupon: validation may have raced a removal that emptied
// the cart, so the emptiness check happens again under the store lock.
func (s *CartStore) ApplyCoupon(ctx context.Context, code string, coupon Coupon, discountAmount int64) {
	if discountAmount < 0 {
		discountAmount = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsEmpty() {
		s.logger(ctx, "cart.coupon_dropped_empty_cart", map[string]any{
			"code": strings.TrimSpace(code),
		})
		return
	}
	s.state.CouponCode = strings.TrimSpace(code)
	couponCopy := coupon
	s.state.ValidatedCoupon = &couponCopy
	s.state.DiscountAmount = discountAmount
	s.persist(ctx)
}

// RemoveCoupon clears the cart-wide discount.
func (s *CartStore) RemoveCoupon(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CouponCode = ""
	s.state.ValidatedCoupon = nil
	s.state.DiscountAmount = 0
	s.persist(ctx)
}

// ItemByPlan looks up a line by plan and optional discriminators, used to
// detect "already in cart" before adding.
func (s *CartStore) ItemByPlan(tab CartTab, planID, country string, opts ItemOptions) (CartItem, bool) {
	id := domain.CartItemID(planID, country, opts)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.state.ItemsByTab[tab] {
		if item.ID == id {
			return item, true
		}
	}
	return CartItem{}, false
}

// TabItems returns a copy of one tab's lines in insertion order.
func (s *CartStore) TabItems(tab CartTab) []CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.state.ItemsByTab[tab]
	out := make([]CartItem, len(items))
	copy(out, items)
	return out
}

// AllItems flattens every tab in display order.
func (s *CartStore) AllItems() []CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AllItems()
}

// Snapshot returns a deep copy of the current state for rendering.
func (s *CartStore) Snapshot() CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subtotal is recomputed fresh on every access.
func (s *CartStore) Subtotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Subtotal()
}

// Total applies the discount, floored at zero.
func (s *CartStore) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Total()
}

// ItemCount sums quantities across all tabs.
func (s *CartStore) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ItemCount()
}

func (s *CartStore) removeLocked(tab CartTab, itemID string) bool {
	items := s.state.ItemsByTab[tab]
	for i := range items {
		if items[i].ID == itemID {
			s.state.ItemsByTab[tab] = append(items[:i], items[i+1:]...)
			return true
		}
	}
	return false
}

func (s *CartStore) clearCouponIfEmptyLocked(ctx context.Context) {
	if !s.state.IsEmpty() {
		return
	}
	if s.state.CouponCode == "" && s.state.ValidatedCoupon == nil && s.state.DiscountAmount == 0 {
		return
	}
	s.state.CouponCode = ""
	s.state.ValidatedCoupon = nil
	s.state.DiscountAmount = 0
	s.logger(ctx, "cart.coupon_cleared_empty", nil)
}

// persist writes the full state through the repository. Failures are logged
// only; the mutation that triggered the write always stands.
func (s *CartStore) persist(ctx context.Context) {
	if err := s.repo.Save(ctx, s.state.Clone()); err != nil {
		s.logger(ctx, "cart.persist_failed", map[string]any{"error": err.Error()})
	}
}
