package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	domain "github.com/netproxy/storefront/internal/domain"
	"github.com/netproxy/storefront/internal/services"
)

// CatalogClient reads plan records from the platform catalog API.
type CatalogClient struct {
	api *apiClient
}

// NewCatalogClient validates the configuration.
func NewCatalogClient(cfg Config) (*CatalogClient, error) {
	api, err := newAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	return &CatalogClient{api: api}, nil
}

type planPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
	Metadata struct {
		ProxyType string `json:"proxy_type"`
		Period    string `json:"period"`
	} `json:"metadata"`
}

func (p planPayload) toDomain() domain.Plan {
	return domain.Plan{
		ID:       p.ID,
		Name:     p.Name,
		Type:     domain.PlanType(p.Type),
		Category: p.Category,
		Price:    p.Price,
		Currency: p.Currency,
		Metadata: domain.PlanMetadata{
			ProxyType: p.Metadata.ProxyType,
			Period:    p.Metadata.Period,
		},
	}
}

// FetchPlan returns one plan by id.
func (c *CatalogClient) FetchPlan(ctx context.Context, planID string) (domain.Plan, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return domain.Plan{}, fmt.Errorf("fetch plan: plan id is required")
	}
	var payload planPayload
	if err := c.api.doJSON(ctx, "GET", "/plans/"+url.PathEscape(planID), nil, &payload); err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) && upstream.Status == http.StatusNotFound {
			return domain.Plan{}, fmt.Errorf("fetch plan %q: %w", planID, services.ErrPlanNotFound)
		}
		return domain.Plan{}, err
	}
	return payload.toDomain(), nil
}

// FetchPlans returns the full plan listing.
func (c *CatalogClient) FetchPlans(ctx context.Context) ([]domain.Plan, error) {
	var payload struct {
		Plans []planPayload `json:"plans"`
	}
	if err := c.api.doJSON(ctx, "GET", "/plans", nil, &payload); err != nil {
		return nil, err
	}
	plans := make([]domain.Plan, 0, len(payload.Plans))
	for _, p := range payload.Plans {
		plans = append(plans, p.toDomain())
	}
	return plans, nil
}
