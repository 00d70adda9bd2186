package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := New()
	opt := st.SeedOption(models.SkuOption{ProductID: 1, Stock: 5, IsActive: true})

	boom := errors.New("boom")
	err := st.Transact(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.UpdateOptionStock(ctx, opt.ID, 1))
		require.NoError(t, tx.InsertWorkLog(ctx, &models.WorkLog{WorkType: "test", TargetType: "option", TargetID: opt.ID}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 5, st.OptionStock(opt.ID))
	assert.Empty(t, st.WorkLogs())
}

func TestFailInventoryInsertAtAppliesToNextTransaction(t *testing.T) {
	ctx := context.Background()
	st := New()
	st.FailInventoryInsertAt(2)

	err := st.Transact(ctx, func(tx store.Tx) error {
		first := &models.InventoryMovement{ProductID: 1, Type: "out", Reason: "sale", Quantity: -1}
		if err := tx.InsertInventoryMovement(ctx, first); err != nil {
			return err
		}
		second := &models.InventoryMovement{ProductID: 2, Type: "out", Reason: "sale", Quantity: -1}
		return tx.InsertInventoryMovement(ctx, second)
	})
	assert.ErrorIs(t, err, ErrInjected)

	// injection is consumed; the following transaction succeeds
	orderID := int64(1)
	err = st.Transact(ctx, func(tx store.Tx) error {
		m := &models.InventoryMovement{ProductID: 1, Type: "out", Reason: "sale", Quantity: -1, OrderID: &orderID}
		return tx.InsertInventoryMovement(ctx, m)
	})
	require.NoError(t, err)

	movements, err := st.MovementsByOrder(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}

func TestInsertOrderRejectsDuplicateNumberInMonth(t *testing.T) {
	ctx := context.Background()
	st := New()

	august := time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)
	err := st.Transact(ctx, func(tx store.Tx) error {
		return tx.InsertOrder(ctx, &models.Order{OrderNo: "081", CounterpartyID: 1, OrderedAt: august})
	})
	require.NoError(t, err)

	err = st.Transact(ctx, func(tx store.Tx) error {
		return tx.InsertOrder(ctx, &models.Order{OrderNo: "081", CounterpartyID: 2, OrderedAt: august.AddDate(0, 0, 5)})
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	// numbers recycle across months; the same number next year is fine
	err = st.Transact(ctx, func(tx store.Tx) error {
		return tx.InsertOrder(ctx, &models.Order{OrderNo: "081", CounterpartyID: 3, OrderedAt: august.AddDate(1, 0, 0)})
	})
	require.NoError(t, err)
}
