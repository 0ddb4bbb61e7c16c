package domain

import (
	"strings"
	"time"
)

// PlanType enumerates the top-level product families sold by the storefront.
type PlanType string

const (
	// PlanTypeRotating covers rotating residential proxy plans.
	PlanTypeRotating PlanType = "rotating"
	// PlanTypeStatic covers static proxy plans.
	PlanTypeStatic PlanType = "static"
	// PlanTypeSubscription covers dedicated datacenter subscription plans.
	PlanTypeSubscription PlanType = "subscription"
)

// PlanMetadata carries catalog attributes used for cart tab classification.
type PlanMetadata struct {
	ProxyType string
	Period    string
}

// Plan is an immutable snapshot of a catalog product. Once embedded in a cart
// item the snapshot survives later catalog changes.
type Plan struct {
	ID       string
	Name     string
	Type     PlanType
	Category string
	Price    int64
	Currency string
	Metadata PlanMetadata
}

// CartTab identifies one of the fixed product categories partitioning the cart.
type CartTab string

const (
	// TabRotating holds rotating proxy plans.
	TabRotating CartTab = "rotating"
	// TabPremiumISP holds premium ISP proxy plans.
	TabPremiumISP CartTab = "premium_isp"
	// TabPrivateIPv4 holds private IPv4 proxy plans.
	TabPrivateIPv4 CartTab = "private_ipv4"
	// TabSharedIPv4 holds shared IPv4 proxy plans.
	TabSharedIPv4 CartTab = "shared_ipv4"
	// TabIPv6 holds IPv6 proxy plans.
	TabIPv6 CartTab = "ipv6"
	// TabStatic holds static proxy plans.
	TabStatic CartTab = "static"
)

// CartTabs returns every tab in stable display order.
func CartTabs() []CartTab {
	return []CartTab{TabRotating, TabPremiumISP, TabPrivateIPv4, TabSharedIPv4, TabIPv6, TabStatic}
}

// ParseCartTab validates a raw tab key.
func ParseCartTab(raw string) (CartTab, bool) {
	candidate := CartTab(strings.ToLower(strings.TrimSpace(raw)))
	for _, tab := range CartTabs() {
		if tab == candidate {
			return tab, true
		}
	}
	return "", false
}

// ItemOptions collects the optional configuration discriminators that
// participate in a cart item's identity key.
type ItemOptions struct {
	Duration   string
	SpeedLimit string
	StaticType string
}

// QuantityBoundary advises UI quantity controls; the store does not enforce it.
type QuantityBoundary struct {
	Min int
	Max int
}

// CartItem is a single cart line. Items with the same composite ID collapse
// into one line whose quantity is the sum of the adds.
type CartItem struct {
	ID         string
	Plan       Plan
	Quantity   int
	Country    string
	Duration   string
	SpeedLimit string
	StaticType string
	// CalculatedPrice overrides the line total when pricing was computed
	// server-side; nil means Plan.Price times Quantity.
	CalculatedPrice *int64
	Boundary        *QuantityBoundary
	AddedAt         time.Time
}

// CartItemID derives the deterministic composite identity key for a cart line.
// Identical configurations always produce the same key.
func CartItemID(planID, country string, opts ItemOptions) string {
	parts := []string{strings.TrimSpace(planID)}
	for _, part := range []string{country, opts.Duration, opts.SpeedLimit, opts.StaticType} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "-")
}

// LineTotal returns the item's contribution to the cart subtotal.
func (i CartItem) LineTotal() int64 {
	if i.CalculatedPrice != nil {
		return *i.CalculatedPrice
	}
	return i.Plan.Price * int64(i.Quantity)
}

// Coupon is a discount validated by the coupon API. The cart never stores
// unvalidated codes.
type Coupon struct {
	Code        string
	Description string
	Percent     int
	PlanID      string
	ExpiresAt   *time.Time
}

// CartState is the full persisted cart: tab-partitioned items plus the
// cart-wide coupon. Totals are always derived, never stored.
type CartState struct {
	ItemsByTab      map[CartTab][]CartItem
	CouponCode      string
	ValidatedCoupon *Coupon
	DiscountAmount  int64
}

// NewCartState returns an empty cart with every tab initialised.
func NewCartState() CartState {
	items := make(map[CartTab][]CartItem, len(CartTabs()))
	for _, tab := range CartTabs() {
		items[tab] = []CartItem{}
	}
	return CartState{ItemsByTab: items}
}

// Subtotal sums every line total across all tabs.
func (s CartState) Subtotal() int64 {
	var subtotal int64
	for _, items := range s.ItemsByTab {
		for _, item := range items {
			subtotal += item.LineTotal()
		}
	}
	return subtotal
}

// Total applies the coupon discount, floored at zero.
func (s CartState) Total() int64 {
	total := s.Subtotal() - s.DiscountAmount
	if total < 0 {
		return 0
	}
	return total
}

// ItemCount sums quantities across all tabs.
func (s CartState) ItemCount() int {
	count := 0
	for _, items := range s.ItemsByTab {
		for _, item := range items {
			count += item.Quantity
		}
	}
	return count
}

// IsEmpty reports whether no tab holds any item.
func (s CartState) IsEmpty() bool {
	for _, items := range s.ItemsByTab {
		if len(items) > 0 {
			return false
		}
	}
	return true
}

// AllItems flattens all tabs in display order, preserving per-tab insertion
// order.
func (s CartState) AllItems() []CartItem {
	out := make([]CartItem, 0, 8)
	for _, tab := range CartTabs() {
		out = append(out, s.ItemsByTab[tab]...)
	}
	return out
}

// Clone produces a deep copy so callers can hand out snapshots safely.
func (s CartState) Clone() CartState {
	dup := CartState{
		CouponCode:     s.CouponCode,
		DiscountAmount: s.DiscountAmount,
		ItemsByTab:     make(map[CartTab][]CartItem, len(s.ItemsByTab)),
	}
	for tab, items := range s.ItemsByTab {
		copied := make([]CartItem, len(items))
		copy(copied, items)
		for i := range copied {
			copied[i].CalculatedPrice = cloneInt64Pointer(copied[i].CalculatedPrice)
			if copied[i].Boundary != nil {
				boundary := *copied[i].Boundary
				copied[i].Boundary = &boundary
			}
		}
		dup.ItemsByTab[tab] = copied
	}
	if s.ValidatedCoupon != nil {
		coupon := *s.ValidatedCoupon
		if coupon.ExpiresAt != nil {
			expires := coupon.ExpiresAt.UTC()
			coupon.ExpiresAt = &expires
		}
		dup.ValidatedCoupon = &coupon
	}
	return dup
}

// CountrySelection is one in-progress country choice within a purchase flow.
// It is working memory only; committed selections become cart items.
type CountrySelection struct {
	Code      string
	Name      string
	Quantity  int
	UnitPrice int64
	Total     int64
}

func cloneInt64Pointer(value *int64) *int64 {
	if value == nil {
		return nil
	}
	dup := *value
	return &dup
}
