// Package ledger holds the three bookkeeping components of the
// fulfillment core: the stock ledger (per-option counters), the account
// balance ledger (per-counterparty receivables) and the transaction
// ledger (append-only movement records). All of them operate inside a
// store transaction owned by the caller and are the sole writers of
// their respective counters.
package ledger

import (
	"context"
	"fmt"

	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"
)

// ClampPolicy decides the resulting stock level for a requested delta.
// The shipped policy absorbs oversell by flooring at zero; it is a
// named rule so the behavior can be revisited without touching the
// ledger itself.
type ClampPolicy func(before, delta int) int

// FloorAtZero clamps decreasing deltas at zero and applies increasing
// deltas without a ceiling.
func FloorAtZero(before, delta int) int {
	after := before + delta
	if delta < 0 && after < 0 {
		return 0
	}
	return after
}

// StockChange is the before/after snapshot of one stock mutation.
type StockChange struct {
	StockBefore int
	StockAfter  int
}

// StockLedger owns SkuOption stock counters.
type StockLedger struct {
	clamp ClampPolicy
}

// NewStockLedger returns a stock ledger using the given clamp policy,
// or FloorAtZero when nil.
func NewStockLedger(clamp ClampPolicy) *StockLedger {
	if clamp == nil {
		clamp = FloorAtZero
	}
	return &StockLedger{clamp: clamp}
}

// ApplyDelta applies a signed stock delta to an option under a row
// lock and returns the before/after snapshot.
//
// A nil option id means the order line resolved to no stock-tracked
// option; the delta is absorbed as a no-op with a zero snapshot so the
// caller can still record the attempted movement.
func (l *StockLedger) ApplyDelta(ctx context.Context, tx store.Tx, optionID *int64, delta int) (StockChange, error) {
	if optionID == nil {
		return StockChange{}, nil
	}

	option, err := tx.OptionForUpdate(ctx, *optionID)
	if err != nil {
		return StockChange{}, fmt.Errorf("stock ledger: %w", err)
	}

	after := l.clamp(option.Stock, delta)
	if after != option.Stock+delta {
		util.StockClampedTotal.Inc()
	}
	if err := tx.UpdateOptionStock(ctx, option.ID, after); err != nil {
		return StockChange{}, fmt.Errorf("stock ledger: update stock: %w", err)
	}

	return StockChange{StockBefore: option.Stock, StockAfter: after}, nil
}
