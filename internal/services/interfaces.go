package services

import (
	"context"

	domain "github.com/netproxy/storefront/internal/domain"
)

// Type aliases expose domain models to the services package without reversing
// dependency direction.
type (
	Plan             = domain.Plan
	CartTab          = domain.CartTab
	CartItem         = domain.CartItem
	CartState        = domain.CartState
	Coupon           = domain.Coupon
	ItemOptions      = domain.ItemOptions
	QuantityBoundary = domain.QuantityBoundary
	CountrySelection = domain.CountrySelection
)

// EventLogger is the structured event logging hook injected into services.
type EventLogger func(ctx context.Context, event string, fields map[string]any)

// PriceQuoteAPI is the remote pricing collaborator. Quote returns the total
// price, in minor units, for serving the given country from the given plan;
// the caller derives per-unit prices from it.
type PriceQuoteAPI interface {
	Quote(ctx context.Context, planID, country string) (int64, error)
}

// PlanSource is the read-only remote catalog collaborator.
type PlanSource interface {
	FetchPlan(ctx context.Context, planID string) (Plan, error)
	FetchPlans(ctx context.Context) ([]Plan, error)
}

// CouponAPI validates a coupon code against an order amount.
type CouponAPI interface {
	ValidateCoupon(ctx context.Context, code string, orderAmount int64, planID string) (CouponValidation, error)
}

// CouponValidation is the already-validated result returned by the coupon API.
type CouponValidation struct {
	Coupon         Coupon
	DiscountAmount int64
}

// PaymentSessionProvider abstracts the PSP used to collect payment for an
// order.
type PaymentSessionProvider interface {
	CreateSession(ctx context.Context, req PaymentSessionRequest) (PaymentSession, error)
}

// PaymentSessionRequest describes the order lines submitted to the PSP.
type PaymentSessionRequest struct {
	Currency       string
	Lines          []PaymentLine
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
	Metadata       map[string]string
}

// PaymentLine is one priced order line.
type PaymentLine struct {
	Name     string
	Amount   int64
	Quantity int64
}

// PaymentSession carries the PSP session handle back to the storefront.
type PaymentSession struct {
	ID          string
	RedirectURL string
}

// OrderLine is the flattened checkout payload shape consumed by the order API.
type OrderLine struct {
	PlanID   string `json:"plan_id"`
	Quantity int    `json:"quantity"`
	Country  string `json:"country,omitempty"`
}

// AddToCartCommand bundles the inputs of a cart add.
type AddToCartCommand struct {
	Tab             CartTab
	Plan            Plan
	Quantity        int
	Options         ItemOptions
	Country         string
	CalculatedPrice *int64
	Boundary        *QuantityBoundary
}

// CreateCheckoutSessionCommand starts a checkout for the current cart.
type CreateCheckoutSessionCommand struct {
	Tab        CartTab
	AllTabs    bool
	SuccessURL string
	CancelURL  string
}

// CompleteCheckoutCommand finalises a checkout by pruning purchased items.
type CompleteCheckoutCommand struct {
	Tab     CartTab
	ItemIDs []string
}

// CheckoutSession is the result of starting a checkout.
type CheckoutSession struct {
	SessionID   string
	RedirectURL string
	Lines       []OrderLine
	ItemIDs     []string
	Total       int64
	Currency    string
}
