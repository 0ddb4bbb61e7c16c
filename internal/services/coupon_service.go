package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	errCouponAPIRequired   = errors.New("coupon service: coupon api is required")
	errCouponCartRequired  = errors.New("coupon service: cart store is required")
	errCouponClockRequired = errors.New("coupon service: clock is required")

	// ErrCouponCodeRequired rejects blank codes before hitting the API.
	ErrCouponCodeRequired = errors.New("coupon code is required")
	// ErrCouponEmptyCart rejects applying a discount over an empty cart.
	ErrCouponEmptyCart = errors.New("cannot apply a coupon to an empty cart")
	// ErrCouponExpired rejects coupons whose validity window has closed.
	ErrCouponExpired = errors.New("coupon has expired")
)

// CouponServiceDeps wires the validation collaborator and the cart the
// validated discount is applied to.
type CouponServiceDeps struct {
	Coupons CouponAPI
	Cart    *CartStore
	Clock   func() time.Time
	Logger  EventLogger
}

// CouponService validates discount codes remotely and applies the validated
// result to the cart. The cart itself only ever stores validated coupons;
// this service is the sole writer of coupon state besides the cart's own
// emptiness-driven clearing.
type CouponService struct {
	coupons CouponAPI
	cart    *CartStore
	now     func() time.Time
	logger  EventLogger
}

// NewCouponService validates dependencies.
func NewCouponService(deps CouponServiceDeps) (*CouponService, error) {
	if deps.Coupons == nil {
		return nil, errCouponAPIRequired
	}
	if deps.Cart == nil {
		return nil, errCouponCartRequired
	}
	if deps.Clock == nil {
		return nil, errCouponClockRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CouponService{
		coupons: deps.Coupons,
		cart:    deps.Cart,
		now:     func() time.Time { return deps.Clock().UTC() },
		logger:  logger,
	}, nil
}

// Apply validates the code against the cart's current subtotal and, on
// success, installs the cart-wide discount. The optional plan id narrows
// validation to plan-scoped coupons.
func (s *CouponService) Apply(ctx context.Context, code, planID string) (CouponValidation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return CouponValidation{}, ErrCouponCodeRequired
	}
	if s.cart.ItemCount() == 0 {
		return CouponValidation{}, ErrCouponEmptyCart
	}

	subtotal := s.cart.Subtotal()
	validation, err := s.coupons.ValidateCoupon(ctx, code, subtotal, strings.TrimSpace(planID))
	if err != nil {
		s.logger(ctx, "coupon.apply_rejected", map[string]any{
			"code":  code,
			"error": err.Error(),
		})
		return CouponValidation{}, fmt.Errorf("validate coupon %q: %w", code, err)
	}
	if validation.Coupon.ExpiresAt != nil && validation.Coupon.ExpiresAt.Before(s.now()) {
		return CouponValidation{}, ErrCouponExpired
	}
	if validation.DiscountAmount < 0 {
		validation.DiscountAmount = 0
	}
	if validation.DiscountAmount > subtotal {
		validation.DiscountAmount = subtotal
	}

	s.cart.ApplyCoupon(ctx, code, validation.Coupon, validation.DiscountAmount)
	s.logger(ctx, "coupon.applied", map[string]any{
		"code":     code,
		"discount": validation.DiscountAmount,
	})
	return validation, nil
}

// Remove clears any applied coupon. Removing when none is applied is a no-op.
func (s *CouponService) Remove(ctx context.Context) {
	s.cart.RemoveCoupon(ctx)
}
