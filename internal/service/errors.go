package service

import (
	"errors"
	"fmt"
)

// Error taxonomy of the fulfillment core. Every failure surfaced to a
// caller wraps exactly one of these sentinels; none are swallowed and
// the core never retries on its own.
var (
	// ErrOrderNotFound means the order id did not resolve. No state changed.
	ErrOrderNotFound = errors.New("order not found")

	// ErrIllegalTransition means the requested target status is not
	// reachable from the order's current status. No state changed.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrEmptyScope means the requested line scope resolved to zero
	// pending lines. No state changed.
	ErrEmptyScope = errors.New("no pending lines in scope")

	// ErrPersistence means the underlying atomic write failed and the
	// whole transition rolled back. The only transient kind: callers
	// may retry the whole call safely.
	ErrPersistence = errors.New("persistence failure")

	// ErrOrderNotDeletable means the order has shipped lines and may
	// no longer be physically deleted.
	ErrOrderNotDeletable = errors.New("order can no longer be deleted")

	// ErrCounterpartyNotFound means the counterparty id did not resolve.
	ErrCounterpartyNotFound = errors.New("counterparty not found")

	// ErrInvalidAmount means a deposit or adjustment amount was not positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrOptionNotFound means the sku option id did not resolve.
	ErrOptionNotFound = errors.New("sku option not found")

	// ErrInvalidQuantity means a stock adjustment quantity was zero.
	ErrInvalidQuantity = errors.New("quantity must be non-zero")
)

// IllegalTransitionError carries the from/to pair of a rejected request.
type IllegalTransitionError struct {
	OrderID int64
	From    string
	To      string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition for order %d: %s -> %s", e.OrderID, e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// persistenceErr wraps a store failure with the transient sentinel.
func persistenceErr(err error) error {
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

// IsClientError reports whether the error is a rejection of the request
// rather than a store failure. Client errors are not retryable.
func IsClientError(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrEmptyScope) ||
		errors.Is(err, ErrOrderNotDeletable) ||
		errors.Is(err, ErrCounterpartyNotFound) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrOptionNotFound) ||
		errors.Is(err, ErrInvalidQuantity)
}
