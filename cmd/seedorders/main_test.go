package main

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"berrystand/internal/admission"
	"berrystand/internal/domain"
	"berrystand/internal/repository"
)

func TestSeedOrders(t *testing.T) {
	ctx := context.Background()
	stores := repository.NewMemoryStores()
	require.NoError(t, stores.Tiers.CreateTier(ctx, &domain.PriceTier{MinQuantity: 0, PricePerPound: decimal.RequireFromString("2.00")}))
	require.NoError(t, stores.Tiers.CreateTier(ctx, &domain.PriceTier{MinQuantity: 100, PricePerPound: decimal.RequireFromString("1.60")}))

	from := time.Date(2024, time.June, 17, 0, 0, 0, 0, time.UTC)
	n, err := seedOrders(ctx, stores, rand.New(rand.NewPCG(1, 2)), from, 10, 6)
	require.NoError(t, err)

	orders, err := stores.Orders.List(ctx, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, orders, n)
	tiers, err := stores.Tiers.ListTiers(ctx)
	require.NoError(t, err)
	last := from.AddDate(0, 0, 9)
	for _, o := range orders {
		assert.True(t, o.Quantity >= 10 && o.Quantity <= 200 && o.Quantity%10 == 0, "quantity %d", o.Quantity)
		assert.False(t, o.PickupDate.Before(from) || o.PickupDate.After(last))
		rate, err := admission.PricePerPound(o.Quantity, tiers)
		require.NoError(t, err)
		assert.True(t, admission.TotalCost(o.Quantity, rate).Equal(o.TotalCost))
	}
}

func TestSeedOrders_NoTiers(t *testing.T) {
	stores := repository.NewMemoryStores()
	// с нулевым max-per-day цены не нужны
	n, err := seedOrders(context.Background(), stores, rand.New(rand.NewPCG(1, 2)), time.Now(), 5, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = seedOrders(context.Background(), stores, rand.New(rand.NewPCG(1, 2)), time.Now(), 5, -1)
	assert.Error(t, err)
}
