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

func TestAccountBalanceApplyDelta(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	cp := st.SeedCounterparty(models.CounterpartyAccount{Name: "Daehan Optics", Code: "DH-02", OutstandingAmount: 1000})
	l := NewAccountBalance()

	err := st.Transact(ctx, func(tx store.Tx) error {
		change, err := l.ApplyDelta(ctx, tx, cp.ID, 7000)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), change.BalanceBefore)
		assert.Equal(t, int64(8000), change.BalanceAfter)
		return nil
	})
	require.NoError(t, err)

	account, err := st.GetCounterparty(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), account.OutstandingAmount)
}

func TestAccountBalanceFloorsDecreaseAtZero(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	cp := st.SeedCounterparty(models.CounterpartyAccount{Name: "Daehan Optics", Code: "DH-02", OutstandingAmount: 3000})
	l := NewAccountBalance()

	err := st.Transact(ctx, func(tx store.Tx) error {
		change, err := l.ApplyDelta(ctx, tx, cp.ID, -10000)
		require.NoError(t, err)
		assert.Equal(t, int64(3000), change.BalanceBefore)
		assert.Equal(t, int64(0), change.BalanceAfter)
		return nil
	})
	require.NoError(t, err)
}

func TestAccountBalanceUnknownCounterparty(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	l := NewAccountBalance()

	err := st.Transact(ctx, func(tx store.Tx) error {
		_, err := l.ApplyDelta(ctx, tx, 42, 100)
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
