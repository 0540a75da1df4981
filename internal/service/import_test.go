package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"berrystand/internal/domain"
	"berrystand/internal/notify"
)

func TestImportOrders(t *testing.T) {
	f := setup(t, notify.LogNotifier{})
	ctx := context.Background()

	placed, err := f.orders.PlaceOrder(ctx, validInput(100))
	require.NoError(t, err)

	restored := uuid.New()
	res, err := f.orders.ImportOrders(ctx, []domain.Order{
		{
			ID:             placed.Order.ID,
			PickupDate:     day(2024, time.July, 5),
			Quantity:       150,
			RequesterName:  "Charles Reid",
			RequesterEmail: "creid@example.com",
			Status:         domain.OrderStatusFulfilled,
			TotalCost:      decimal.RequireFromString("240.00"),
		},
		{
			ID:             restored,
			PickupDate:     day(2024, time.December, 1),
			Quantity:       10,
			RequesterName:  "Ann Lee",
			RequesterEmail: "ann@example.com",
			Status:         domain.OrderStatusCanceled,
			TotalCost:      decimal.RequireFromString("20.00"),
		},
		{
			PickupDate:     day(2024, time.July, 6),
			Quantity:       20,
			RequesterName:  "Bo Park",
			RequesterEmail: "bo@example.com",
			Status:         domain.OrderStatusPending,
			TotalCost:      decimal.RequireFromString("40.00"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Created: 2, Updated: 1}, res)

	got, err := f.orders.GetOrder(ctx, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFulfilled, got.Status)
	assert.Equal(t, 150, got.Quantity)
	assert.Equal(t, placed.Order.CreatedAt, got.CreatedAt)

	// out-of-season rows are kept as exported
	got, err = f.orders.GetOrder(ctx, restored)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCanceled, got.Status)
	assert.True(t, got.PickupDate.Equal(day(2024, time.December, 1)))
}

func TestImportOrders_Empty(t *testing.T) {
	f := setup(t, notify.LogNotifier{})

	_, err := f.orders.ImportOrders(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.FieldErrors, "file")
}
