package service

import (
	"context"
	"testing"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustStockRestocksOption(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	result, err := f.inventory.AdjustStock(ctx, &AdjustStockRequest{
		SkuOptionID: f.o1.ID,
		Quantity:    10,
		Memo:        "supplier delivery",
		Actor:       "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.StockBefore)
	assert.Equal(t, 15, result.StockAfter)
	assert.Equal(t, 15, f.st.OptionStock(f.o1.ID))

	movements := f.st.InventoryMovements()
	require.Len(t, movements, 1)
	m := movements[0]
	assert.Equal(t, models.MovementTypeIn, m.Type)
	assert.Equal(t, models.MovementReasonRestock, m.Reason)
	assert.Equal(t, 10, m.Quantity)
	// manual movements carry no order reference
	assert.Nil(t, m.OrderID)

	logs := f.st.WorkLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, models.WorkTypeStockAdjust, logs[0].WorkType)
	assert.Equal(t, f.o1.ID, logs[0].TargetID)
}

func TestAdjustStockNegativeDeltaFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	result, err := f.inventory.AdjustStock(ctx, &AdjustStockRequest{
		SkuOptionID: f.o1.ID,
		Quantity:    -3,
		Actor:       "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.StockAfter)

	// a correction larger than the stock on hand clamps at zero
	result, err = f.inventory.AdjustStock(ctx, &AdjustStockRequest{
		SkuOptionID: f.o1.ID,
		Quantity:    -7,
		Actor:       "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.StockBefore)
	assert.Equal(t, 0, result.StockAfter)
	assert.Equal(t, 0, f.st.OptionStock(f.o1.ID))
}

func TestAdjustStockValidation(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	_, err := f.inventory.AdjustStock(ctx, &AdjustStockRequest{SkuOptionID: f.o1.ID, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.inventory.AdjustStock(ctx, &AdjustStockRequest{SkuOptionID: 9999, Quantity: 1})
	assert.ErrorIs(t, err, ErrOptionNotFound)

	assert.Equal(t, 5, f.st.OptionStock(f.o1.ID))
}

func TestGetOptionStock(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	option, err := f.inventory.GetOptionStock(ctx, f.o1.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, option.Stock)

	_, err = f.inventory.GetOptionStock(ctx, 9999)
	assert.ErrorIs(t, err, ErrOptionNotFound)
}
