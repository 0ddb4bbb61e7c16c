package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/netproxy/storefront/internal/domain"
	"github.com/netproxy/storefront/internal/services"
)

// CouponClient validates discount codes against the platform coupon API.
type CouponClient struct {
	api *apiClient
}

// NewCouponClient validates the configuration.
func NewCouponClient(cfg Config) (*CouponClient, error) {
	api, err := newAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	return &CouponClient{api: api}, nil
}

type validateCouponRequest struct {
	Code        string `json:"code"`
	OrderAmount int64  `json:"order_amount"`
	PlanID      string `json:"plan_id,omitempty"`
}

type validateCouponResponse struct {
	Coupon struct {
		Code        string     `json:"code"`
		Description string     `json:"description"`
		Percent     int        `json:"percent"`
		PlanID      string     `json:"plan_id"`
		ExpiresAt   *time.Time `json:"expires_at"`
	} `json:"coupon"`
	DiscountAmount int64 `json:"discount_amount"`
}

// ValidateCoupon submits the code and order amount, returning the validated
// coupon and discount.
func (c *CouponClient) ValidateCoupon(ctx context.Context, code string, orderAmount int64, planID string) (services.CouponValidation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return services.CouponValidation{}, fmt.Errorf("validate coupon: code is required")
	}

	var resp validateCouponResponse
	req := validateCouponRequest{Code: code, OrderAmount: orderAmount, PlanID: strings.TrimSpace(planID)}
	if err := c.api.doJSON(ctx, "POST", "/coupons/validate", req, &resp); err != nil {
		return services.CouponValidation{}, err
	}

	coupon := domain.Coupon{
		Code:        resp.Coupon.Code,
		Description: resp.Coupon.Description,
		Percent:     resp.Coupon.Percent,
		PlanID:      resp.Coupon.PlanID,
	}
	if resp.Coupon.ExpiresAt != nil {
		expiresAt := resp.Coupon.ExpiresAt.UTC()
		coupon.ExpiresAt = &expiresAt
	}
	return services.CouponValidation{Coupon: coupon, DiscountAmount: resp.DiscountAmount}, nil
}
