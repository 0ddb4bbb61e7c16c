package domain

// priceTier maps a minimum quantity (inclusive) to a per-unit price.
type priceTier struct {
	minQuantity int
	unitPrice   int64
}

// Tier table evaluated highest threshold first. Prices are minor units per
// proxy per billing period.
var priceTiers = []priceTier{
	{minQuantity: 300, unitPrice: 170},
	{minQuantity: 200, unitPrice: 190},
	{minQuantity: 100, unitPrice: 210},
	{minQuantity: 50, unitPrice: 230},
	{minQuantity: 25, unitPrice: 250},
	{minQuantity: 10, unitPrice: 270},
	{minQuantity: 1, unitPrice: 300},
}

// PriceForQuantity resolves the fallback per-unit price for a quantity using
// the static tier table. It is the pricing source of last resort when the
// live quote endpoint is unavailable or has not answered yet. Quantities
// below one are undefined; callers must guard.
func PriceForQuantity(quantity int) int64 {
	for _, tier := range priceTiers {
		if quantity >= tier.minQuantity {
			return tier.unitPrice
		}
	}
	return priceTiers[len(priceTiers)-1].unitPrice
}
