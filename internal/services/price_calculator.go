package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/netproxy/storefront/internal/domain"
)

var errPriceQuoteAPIRequired = errors.New("price calculator: quote api is required")

// PriceCalculatorDeps wires the remote quote collaborator.
type PriceCalculatorDeps struct {
	Quotes  PriceQuoteAPI
	Timeout time.Duration
	Logger  EventLogger
}

// PriceCalculator turns remote whole-request quotes into per-unit prices.
// It never fails from the caller's perspective: any quote error degrades to
// the static tier table, so pricing is at worst less accurate, never absent.
type PriceCalculator struct {
	quotes  PriceQuoteAPI
	timeout time.Duration
	logger  EventLogger
}

// NewPriceCalculator validates dependencies.
func NewPriceCalculator(deps PriceCalculatorDeps) (*PriceCalculator, error) {
	if deps.Quotes == nil {
		return nil, errPriceQuoteAPIRequired
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PriceCalculator{quotes: deps.Quotes, timeout: timeout, logger: logger}, nil
}

// UnitPrice resolves the per-unit price for (plan, country, quantity). The
// remote endpoint prices the whole request, so the total is divided by the
// quantity, rounded to the nearest minor unit.
func (c *PriceCalculator) UnitPrice(ctx context.Context, planID, country string, quantity int) int64 {
	if quantity < 1 {
		quantity = 1
	}

	planID = strings.TrimSpace(planID)
	country = strings.TrimSpace(country)

	quoteCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	total, err := c.quotes.Quote(quoteCtx, planID, country)
	if err != nil || total < 0 {
		if err == nil {
			err = errors.New("negative quote total")
		}
		c.logger(ctx, "pricing.quote_failed", map[string]any{
			"planId":  planID,
			"country": country,
			"error":   err.Error(),
		})
		return domain.PriceForQuantity(quantity)
	}

	q := int64(quantity)
	return (total + q/2) / q
}
