package clients

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// PricingClient calls the platform's price quote endpoint. The endpoint
// prices a whole request for a plan served from a country; per-unit math
// belongs to the caller.
type PricingClient struct {
	api *apiClient
}

// NewPricingClient validates the configuration.
func NewPricingClient(cfg Config) (*PricingClient, error) {
	api, err := newAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	return &PricingClient{api: api}, nil
}

type calculatePriceRequest struct {
	Country string `json:"country"`
}

type calculatePriceResponse struct {
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
}

// Quote returns the total price, in minor units, for the plan and country.
func (c *PricingClient) Quote(ctx context.Context, planID, country string) (int64, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return 0, fmt.Errorf("quote: plan id is required")
	}

	var resp calculatePriceResponse
	path := fmt.Sprintf("/plans/%s/calculate-price", url.PathEscape(planID))
	if err := c.api.doJSON(ctx, "POST", path, calculatePriceRequest{Country: strings.TrimSpace(country)}, &resp); err != nil {
		return 0, err
	}
	return resp.Price, nil
}
