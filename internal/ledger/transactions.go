package ledger

import (
	"context"
	"errors"
	"fmt"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
)

// ErrMissingField is returned when a movement record lacks a required
// field. The transaction ledger does no business validation beyond
// this; transition legality is the engine's job.
var ErrMissingField = errors.New("movement record missing required field")

// TransactionLedger appends immutable movement records. Records are
// created once and never updated or deleted; if the enclosing
// transaction aborts, no partial record becomes visible.
type TransactionLedger struct{}

// NewTransactionLedger returns the transaction ledger.
func NewTransactionLedger() *TransactionLedger {
	return &TransactionLedger{}
}

// RecordInventoryMovement appends one stock movement record.
func (l *TransactionLedger) RecordInventoryMovement(ctx context.Context, tx store.Tx, m *models.InventoryMovement) error {
	if m.ProductID == 0 || m.Type == "" || m.Reason == "" {
		return ErrMissingField
	}
	if err := tx.InsertInventoryMovement(ctx, m); err != nil {
		return fmt.Errorf("transaction ledger: inventory movement: %w", err)
	}
	return nil
}

// RecordAccountMovement appends one balance movement record.
func (l *TransactionLedger) RecordAccountMovement(ctx context.Context, tx store.Tx, m *models.AccountMovement) error {
	if m.CounterpartyID == 0 || m.Type == "" {
		return ErrMissingField
	}
	if err := tx.InsertAccountMovement(ctx, m); err != nil {
		return fmt.Errorf("transaction ledger: account movement: %w", err)
	}
	return nil
}
