package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"berrystand/internal/domain"
)

func testRules() Rules {
	return Rules{Season: summerSeason()}
}

func testTiers() []domain.PriceTier {
	return []domain.PriceTier{tier(100, "1.60"), tier(0, "2.00")}
}

func TestEvaluate_Accepted(t *testing.T) {
	today := day(2024, time.June, 20)
	c := Candidate{PickupDate: day(2024, time.July, 4), Quantity: 150}
	snap := Snapshot{Committed: 20, Tiers: testTiers(), Limit: Limit{Pounds: 200, Source: LimitForDate}}

	d, err := Evaluate(c, snap, today, testRules())
	require.NoError(t, err)
	assert.True(t, d.Accepted())
	assert.Equal(t, "1.60", d.PricePerPound.StringFixed(2))
	assert.Equal(t, "240.00", d.TotalCost.StringFixed(2))
}

func TestEvaluate_Idempotent(t *testing.T) {
	today := day(2024, time.June, 20)
	c := Candidate{PickupDate: day(2024, time.July, 4), Quantity: 90}
	snap := Snapshot{Committed: 0, Tiers: testTiers()}

	first, err := Evaluate(c, snap, today, testRules())
	require.NoError(t, err)
	second, err := Evaluate(c, snap, today, testRules())
	require.NoError(t, err)

	assert.Equal(t, first.Accepted(), second.Accepted())
	assert.True(t, first.TotalCost.Equal(second.TotalCost))
	assert.Equal(t, "180.00", second.TotalCost.StringFixed(2))
	assert.Len(t, snap.Tiers, 2)
}

func TestEvaluate_CollectsFieldErrors(t *testing.T) {
	today := day(2024, time.June, 20)
	c := Candidate{PickupDate: day(2024, time.June, 1), Quantity: 15}
	// a full day must not be reported while the fields are invalid
	snap := Snapshot{Committed: 1000, Tiers: testTiers(), Limit: Limit{Pounds: 10, Source: LimitForDate}}

	d, err := Evaluate(c, snap, today, testRules())
	require.NoError(t, err)
	assert.False(t, d.Accepted())
	require.Len(t, d.FieldErrors[FieldQuantity], 1)
	assert.ErrorIs(t, d.FieldErrors[FieldQuantity][0], ErrInvalidQuantity)
	require.Len(t, d.FieldErrors[FieldPickupDate], 1)
	assert.ErrorIs(t, d.FieldErrors[FieldPickupDate][0], ErrDateInPast)
	assert.Empty(t, d.OrderErrors)
}

func TestEvaluate_InvalidQuantities(t *testing.T) {
	today := day(2024, time.June, 20)
	for _, q := range []int{0, -10, 5, 101} {
		d, err := Evaluate(Candidate{PickupDate: day(2024, time.July, 4), Quantity: q}, Snapshot{Tiers: testTiers()}, today, testRules())
		require.NoError(t, err)
		assert.Contains(t, d.FieldErrors, FieldQuantity, "quantity %d", q)
	}
}

func TestEvaluate_CapacityIsOrderError(t *testing.T) {
	today := day(2024, time.June, 20)
	c := Candidate{PickupDate: day(2024, time.July, 4), Quantity: 30}
	snap := Snapshot{Committed: 180, Tiers: testTiers(), Limit: Limit{Pounds: 200, Source: LimitForDate}}

	d, err := Evaluate(c, snap, today, testRules())
	require.NoError(t, err)
	assert.Empty(t, d.FieldErrors)
	require.Len(t, d.OrderErrors, 1)
	var capErr *CapacityExceededError
	require.ErrorAs(t, d.OrderErrors[0], &capErr)
	assert.Equal(t, 10, capErr.Overage)
}

func TestEvaluate_EditDecreaseOnFullDay(t *testing.T) {
	today := day(2024, time.June, 20)
	july4 := day(2024, time.July, 4)
	snap := Snapshot{Committed: 100, Tiers: testTiers(), Limit: Limit{Pounds: 100, Source: LimitForDate}}
	prev := &Previous{PickupDate: july4, Quantity: 100}

	d, err := Evaluate(Candidate{PickupDate: july4, Quantity: 50, Previous: prev}, snap, today, testRules())
	require.NoError(t, err)
	assert.True(t, d.Accepted())
	assert.Equal(t, "100.00", d.TotalCost.StringFixed(2))

	d, err = Evaluate(Candidate{PickupDate: july4, Quantity: 110, Previous: prev}, snap, today, testRules())
	require.NoError(t, err)
	require.Len(t, d.OrderErrors, 1)
	var capErr *CapacityExceededError
	require.ErrorAs(t, d.OrderErrors[0], &capErr)
	assert.Equal(t, 10, capErr.Overage)
}

func TestEvaluate_NoLimitAnywhere(t *testing.T) {
	today := day(2024, time.June, 20)
	limit := ResolveLimit(day(2024, time.July, 4), nil, 0)

	d, err := Evaluate(Candidate{PickupDate: day(2024, time.July, 4), Quantity: 5000}, Snapshot{Committed: 90000, Tiers: testTiers(), Limit: limit}, today, testRules())
	require.NoError(t, err)
	assert.True(t, d.Accepted())
}

func TestEvaluate_PricingConfigurationFault(t *testing.T) {
	today := day(2024, time.June, 20)
	_, err := Evaluate(Candidate{PickupDate: day(2024, time.July, 4), Quantity: 10}, Snapshot{}, today, testRules())
	assert.ErrorIs(t, err, ErrPricingConfiguration)
}
