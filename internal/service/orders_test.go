package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderComputesTotals(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	resp, lines := f.createOrder(t, models.OrderKindStock,
		f.line(f.p1, f.o1, 2), f.line(f.p2, f.o2, -1))

	assert.Equal(t, int64(2*10000-5000), resp.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, resp.Status)
	assert.Equal(t, 2, resp.LineCount)

	require.Len(t, lines, 2)
	assert.Equal(t, int64(10000), lines[0].UnitPrice)
	assert.Equal(t, int64(20000), lines[0].LineTotal)
	assert.Equal(t, 1, lines[0].Seq)
	assert.Equal(t, int64(-5000), lines[1].LineTotal)
	assert.Equal(t, 2, lines[1].Seq)
	for _, l := range lines {
		assert.Equal(t, models.LineStatusPending, l.Status)
	}

	order, err := f.st.GetOrder(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, f.cp.ID, order.CounterpartyID)
}

func TestCreateOrderNumbersResetMonthly(t *testing.T) {
	f := newEngineFixture(t)

	first, _ := f.createOrder(t, models.OrderKindStock, f.line(f.p1, f.o1, 1))
	second, _ := f.createOrder(t, models.OrderKindStock, f.line(f.p1, f.o1, 1))

	prefix := fmt.Sprintf("%02d", int(time.Now().Month()))
	assert.Equal(t, prefix+"1", first.OrderNo)
	assert.Equal(t, prefix+"2", second.OrderNo)
}

func TestCreateOrderNumberConflictIsRetryable(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.st.ConflictNextOrderInsert()
	_, err := f.orders.CreateOrder(ctx, &CreateOrderRequest{
		CounterpartyID: f.cp.ID,
		OrderKind:      models.OrderKindStock,
		Lines:          []OrderLineRequest{f.line(f.p1, f.o1, 1)},
	})
	assert.ErrorIs(t, err, ErrPersistence)

	// the losing intake left nothing behind; a retry gets the number
	resp, _ := f.createOrder(t, models.OrderKindStock, f.line(f.p1, f.o1, 1))
	prefix := fmt.Sprintf("%02d", int(time.Now().Month()))
	assert.Equal(t, prefix+"1", resp.OrderNo)
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	_, err := f.orders.CreateOrder(ctx, &CreateOrderRequest{
		CounterpartyID: f.cp.ID,
		OrderKind:      "wholesale",
		Lines:          []OrderLineRequest{f.line(f.p1, f.o1, 1)},
	})
	assert.Error(t, err)

	_, err = f.orders.CreateOrder(ctx, &CreateOrderRequest{
		CounterpartyID: f.cp.ID,
		OrderKind:      models.OrderKindStock,
		Lines:          []OrderLineRequest{{ProductID: f.p1.ID, Quantity: 0}},
	})
	assert.Error(t, err)

	_, err = f.orders.CreateOrder(ctx, &CreateOrderRequest{
		CounterpartyID: 9999,
		OrderKind:      models.OrderKindStock,
		Lines:          []OrderLineRequest{f.line(f.p1, f.o1, 1)},
	})
	assert.ErrorIs(t, err, ErrCounterpartyNotFound)

	_, err = f.orders.CreateOrder(ctx, &CreateOrderRequest{
		CounterpartyID: f.cp.ID,
		OrderKind:      models.OrderKindStock,
		Lines:          []OrderLineRequest{{ProductID: 9999, Quantity: 1}},
	})
	assert.Error(t, err)
}

func TestDeleteOrderOnlyWhilePending(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	resp, _ := f.createOrder(t, models.OrderKindStock, f.line(f.p1, f.o1, 1))
	require.NoError(t, f.orders.DeleteOrder(ctx, resp.OrderID, "tester"))

	_, _, err := f.orders.GetOrder(ctx, resp.OrderID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	resp, _ = f.createOrder(t, models.OrderKindStock, f.line(f.p1, f.o1, 1))
	f.transition(t, resp.OrderID, models.OrderStatusShipped)

	err = f.orders.DeleteOrder(ctx, resp.OrderID, "tester")
	assert.ErrorIs(t, err, ErrOrderNotDeletable)
}

func TestGetOrderMovements(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	resp, _ := f.createOrder(t, models.OrderKindStock, f.line(f.p1, f.o1, 1))
	f.transition(t, resp.OrderID, models.OrderStatusShipped)

	movements, err := f.orders.GetOrderMovements(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Len(t, movements, 1)

	_, err = f.orders.GetOrderMovements(ctx, 9999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
