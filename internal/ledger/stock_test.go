package ledger

import (
	"context"
	"testing"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloorAtZero(t *testing.T) {
	assert.Equal(t, 2, FloorAtZero(5, -3))
	assert.Equal(t, 0, FloorAtZero(5, -5))
	assert.Equal(t, 0, FloorAtZero(2, -7))
	assert.Equal(t, 9, FloorAtZero(5, 4))
	assert.Equal(t, 105, FloorAtZero(100, 5))
}

func TestStockLedgerApplyDelta(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	opt := st.SeedOption(models.SkuOption{ProductID: 1, Stock: 3, IsActive: true})
	l := NewStockLedger(nil)

	err := st.Transact(ctx, func(tx store.Tx) error {
		change, err := l.ApplyDelta(ctx, tx, &opt.ID, -2)
		require.NoError(t, err)
		assert.Equal(t, 3, change.StockBefore)
		assert.Equal(t, 1, change.StockAfter)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, st.OptionStock(opt.ID))
}

func TestStockLedgerClampsOversell(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	opt := st.SeedOption(models.SkuOption{ProductID: 1, Stock: 2, IsActive: true})
	l := NewStockLedger(nil)

	err := st.Transact(ctx, func(tx store.Tx) error {
		change, err := l.ApplyDelta(ctx, tx, &opt.ID, -5)
		require.NoError(t, err)
		assert.Equal(t, 2, change.StockBefore)
		assert.Equal(t, 0, change.StockAfter)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, st.OptionStock(opt.ID))
}

func TestStockLedgerNilOptionIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	l := NewStockLedger(nil)

	err := st.Transact(ctx, func(tx store.Tx) error {
		change, err := l.ApplyDelta(ctx, tx, nil, -4)
		require.NoError(t, err)
		assert.Equal(t, StockChange{}, change)
		return nil
	})
	require.NoError(t, err)
}

func TestStockLedgerUnknownOption(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	l := NewStockLedger(nil)
	missing := int64(42)

	err := st.Transact(ctx, func(tx store.Tx) error {
		_, err := l.ApplyDelta(ctx, tx, &missing, -1)
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
