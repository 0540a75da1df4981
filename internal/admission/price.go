package admission

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"berrystand/internal/domain"
)

// PricePerPound returns the rate of the tier with the highest threshold that quantity
// still reaches. Tiers normally arrive sorted descending by MinQuantity, but the result does
// not depend on it.
func PricePerPound(quantity int, tiers []domain.PriceTier) (decimal.Decimal, error) {
	var (
		best  domain.PriceTier
		found bool
	)
	for _, t := range tiers {
		if t.MinQuantity > quantity {
			continue
		}
		if !found || t.MinQuantity > best.MinQuantity {
			best, found = t, true
		}
	}
	if !found {
		return decimal.Zero, fmt.Errorf("%w: %d lb", ErrPricingConfiguration, quantity)
	}
	return best.PricePerPound, nil
}

// TotalCost is quantity times rate, rounded to cents.
func TotalCost(quantity int, rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// SortTiersAscending orders tiers the way the storefront lists them, cheapest threshold first.
func SortTiersAscending(tiers []domain.PriceTier) {
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinQuantity < tiers[j].MinQuantity
	})
}
