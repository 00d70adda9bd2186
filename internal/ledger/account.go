package ledger

import (
	"context"
	"fmt"

	"fulfillment-service/internal/store"
)

// BalanceChange is the before/after snapshot of one balance mutation.
type BalanceChange struct {
	BalanceBefore int64
	BalanceAfter  int64
}

// AccountBalance owns the running outstanding-balance counter of each
// counterparty. The counter moves in lockstep with account movement
// inserts made by the caller.
type AccountBalance struct{}

// NewAccountBalance returns the account balance ledger.
func NewAccountBalance() *AccountBalance {
	return &AccountBalance{}
}

// ApplyDelta adds a signed amount to a counterparty's outstanding
// balance under a row lock. Decreasing deltas floor the visible
// counter at zero; the caller records the true movement amount in the
// movement log regardless.
func (l *AccountBalance) ApplyDelta(ctx context.Context, tx store.Tx, counterpartyID int64, amount int64) (BalanceChange, error) {
	account, err := tx.AccountForUpdate(ctx, counterpartyID)
	if err != nil {
		return BalanceChange{}, fmt.Errorf("account balance: %w", err)
	}

	after := account.OutstandingAmount + amount
	if amount < 0 && after < 0 {
		after = 0
	}

	if err := tx.UpdateAccountBalance(ctx, counterpartyID, after); err != nil {
		return BalanceChange{}, fmt.Errorf("account balance: update: %w", err)
	}

	return BalanceChange{BalanceBefore: account.OutstandingAmount, BalanceAfter: after}, nil
}
