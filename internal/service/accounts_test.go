package service

import (
	"context"
	"testing"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDepositReducesBalance(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	resp, _ := f.createOrder(t, models.OrderKindStock,
		f.line(f.p1, f.o1, 1), f.line(f.p2, f.o2, 2))
	f.transition(t, resp.OrderID, models.OrderStatusShipped)

	result, err := f.accounts.RecordDeposit(ctx, &DepositRequest{
		CounterpartyID: f.cp.ID,
		Amount:         15000,
		PaymentMethod:  "cash",
		Actor:          "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15000), result.Amount)
	assert.Equal(t, int64(5000), result.BalanceAfter)

	account, err := f.accounts.GetBalance(ctx, f.cp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), account.OutstandingAmount)
	assert.NotNil(t, account.LastPaymentAt)

	// deposit is logged negative so the balance equals the movement sum
	recon, err := f.accounts.Reconcile(ctx, f.cp.ID)
	require.NoError(t, err)
	assert.True(t, recon.Consistent)
	assert.Equal(t, int64(5000), recon.MovementSum)
}

func TestDepositFloorsBalanceAtZero(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	resp, _ := f.createOrder(t, models.OrderKindStock, f.line(f.p1, f.o1, 2))
	f.transition(t, resp.OrderID, models.OrderStatusShipped)

	result, err := f.accounts.RecordDeposit(ctx, &DepositRequest{
		CounterpartyID: f.cp.ID,
		Amount:         50000,
		Actor:          "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.BalanceAfter)

	// the overpayment is kept in the log, so reconciliation flags it
	recon, err := f.accounts.Reconcile(ctx, f.cp.ID)
	require.NoError(t, err)
	assert.False(t, recon.Consistent)
	assert.Equal(t, int64(20000-50000), recon.MovementSum)
	assert.Equal(t, int64(0), recon.Balance)
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	_, err := f.accounts.RecordDeposit(ctx, &DepositRequest{CounterpartyID: f.cp.ID, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.accounts.RecordDeposit(ctx, &DepositRequest{CounterpartyID: f.cp.ID, Amount: -100})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDepositUnknownCounterparty(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.accounts.RecordDeposit(context.Background(), &DepositRequest{
		CounterpartyID: 9999,
		Amount:         1000,
	})
	assert.ErrorIs(t, err, ErrCounterpartyNotFound)
}

func TestRecordDiscountReducesBalance(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	resp, _ := f.createOrder(t, models.OrderKindStock,
		f.line(f.p1, f.o1, 1), f.line(f.p2, f.o2, 2))
	f.transition(t, resp.OrderID, models.OrderStatusShipped)

	result, err := f.accounts.RecordDiscount(ctx, &DiscountRequest{
		CounterpartyID: f.cp.ID,
		Amount:         3000,
		Memo:           "goodwill",
		Actor:          "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), result.Amount)
	assert.Equal(t, int64(17000), result.BalanceAfter)

	// a discount is not a payment
	account, err := f.accounts.GetBalance(ctx, f.cp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(17000), account.OutstandingAmount)
	assert.Nil(t, account.LastPaymentAt)

	movements, err := f.accounts.RecentMovements(ctx, f.cp.ID, 10)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, models.AccountTypeAdjustment, movements[0].Type)
	assert.Equal(t, int64(-3000), movements[0].Amount)

	// logged negative, so the balance still equals the movement sum
	recon, err := f.accounts.Reconcile(ctx, f.cp.ID)
	require.NoError(t, err)
	assert.True(t, recon.Consistent)
	assert.Equal(t, int64(17000), recon.MovementSum)
}

func TestRecordDiscountValidation(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	_, err := f.accounts.RecordDiscount(ctx, &DiscountRequest{CounterpartyID: f.cp.ID, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.accounts.RecordDiscount(ctx, &DiscountRequest{CounterpartyID: 9999, Amount: 1000})
	assert.ErrorIs(t, err, ErrCounterpartyNotFound)
}

func TestRecentMovementsNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	resp, _ := f.createOrder(t, models.OrderKindStock, f.line(f.p1, f.o1, 1))
	f.transition(t, resp.OrderID, models.OrderStatusShipped)

	_, err := f.accounts.RecordDeposit(ctx, &DepositRequest{
		CounterpartyID: f.cp.ID,
		Amount:         4000,
		Actor:          "tester",
	})
	require.NoError(t, err)

	movements, err := f.accounts.RecentMovements(ctx, f.cp.ID, 10)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, models.AccountTypeDeposit, movements[0].Type)
	assert.Equal(t, int64(-4000), movements[0].Amount)
	assert.Equal(t, models.AccountTypeSale, movements[1].Type)

	_, err = f.accounts.RecentMovements(ctx, 9999, 10)
	assert.ErrorIs(t, err, ErrCounterpartyNotFound)
}

func TestReconcileConsistentThroughFulfillmentCycle(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	resp, _ := f.createOrder(t, models.OrderKindStock, f.line(f.p1, f.o1, 1))
	f.transition(t, resp.OrderID, models.OrderStatusConfirmed)
	f.transition(t, resp.OrderID, models.OrderStatusCancelled)

	recon, err := f.accounts.Reconcile(ctx, f.cp.ID)
	require.NoError(t, err)
	assert.True(t, recon.Consistent)
	assert.Equal(t, int64(0), recon.Balance)
	assert.Equal(t, int64(0), recon.MovementSum)
}
