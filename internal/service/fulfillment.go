package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/ledger"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher emits domain events after a transition commits. Publishing
// is fire-and-forget; a publish failure never fails the transition.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderTransitioned(ctx context.Context, event *models.OrderTransitionedEvent) error
	PublishDepositRecorded(ctx context.Context, event *models.DepositRecordedEvent) error
}

// FulfillmentEngine drives order status transitions. Each transition
// validates legality, computes per-line stock deltas, appends movement
// records, moves the counterparty balance and recomputes order status,
// all inside one store transaction.
type FulfillmentEngine struct {
	store     store.Datastore
	stock     *ledger.StockLedger
	accounts  *ledger.AccountBalance
	journal   *ledger.TransactionLedger
	publisher Publisher
	logger    *zap.Logger
}

// NewFulfillmentEngine creates the engine. publisher may be nil.
func NewFulfillmentEngine(
	st store.Datastore,
	stock *ledger.StockLedger,
	accounts *ledger.AccountBalance,
	journal *ledger.TransactionLedger,
	publisher Publisher,
) *FulfillmentEngine {
	return &FulfillmentEngine{
		store:     st,
		stock:     stock,
		accounts:  accounts,
		journal:   journal,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// TransitionRequest asks for one status transition on an order, either
// for the whole order or for the named line ids only.
type TransitionRequest struct {
	OrderID int64   `json:"order_id"`
	Target  string  `json:"target_status"`
	LineIDs []int64 `json:"line_ids,omitempty"`
	Actor   string  `json:"actor"`
}

// TransitionResult reports the committed outcome of one transition.
type TransitionResult struct {
	OrderID        int64                      `json:"order_id"`
	OrderNo        string                     `json:"order_no"`
	CounterpartyID int64                      `json:"counterparty_id"`
	FromStatus     string                     `json:"from_status"`
	NewStatus      string                     `json:"new_status"`
	Amount         int64                      `json:"amount"`
	BalanceAfter   int64                      `json:"balance_after"`
	Movements      []models.InventoryMovement `json:"movements"`
}

// Transition executes one status transition atomically. On any error
// the store is left untouched.
func (e *FulfillmentEngine) Transition(ctx context.Context, req *TransitionRequest) (*TransitionResult, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentEngine.Transition")
	defer span.End()

	start := time.Now()
	defer func() {
		util.TransitionLatency.Observe(time.Since(start).Seconds())
	}()

	var result *TransitionResult
	err := e.store.Transact(ctx, func(tx store.Tx) error {
		var txErr error
		result, txErr = e.transition(ctx, tx, req)
		return txErr
	})
	if err != nil {
		util.TransitionsFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.TransitionsTotal.WithLabelValues(result.NewStatus).Inc()
	e.logger.Info("Order transitioned",
		zap.Int64("order_id", result.OrderID),
		zap.String("order_no", result.OrderNo),
		zap.String("from", result.FromStatus),
		zap.String("to", result.NewStatus),
		zap.Int64("amount", result.Amount))

	e.publishTransition(ctx, req.Actor, result)
	return result, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, ErrEmptyScope):
		return "empty_scope"
	default:
		return "persistence"
	}
}

func (e *FulfillmentEngine) transition(ctx context.Context, tx store.Tx, req *TransitionRequest) (*TransitionResult, error) {
	order, err := tx.OrderForUpdate(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, persistenceErr(err)
	}

	if !transitionAllowed(order.Status, req.Target) {
		return nil, &IllegalTransitionError{OrderID: order.ID, From: order.Status, To: req.Target}
	}

	lines, err := tx.LinesByOrder(ctx, order.ID)
	if err != nil {
		return nil, persistenceErr(err)
	}

	now := time.Now()

	switch req.Target {
	case models.OrderStatusConfirmed:
		return e.confirm(ctx, tx, order, lines, req.Actor, now)
	case models.OrderStatusShipped, models.OrderStatusPartial:
		return e.ship(ctx, tx, order, lines, req.LineIDs, req.Actor, now)
	case models.OrderStatusCancelled:
		return e.cancel(ctx, tx, order, lines, req.Actor, now)
	case models.OrderStatusDelivered:
		return e.deliver(ctx, tx, order, req.Actor, now)
	default:
		return nil, &IllegalTransitionError{OrderID: order.ID, From: order.Status, To: req.Target}
	}
}

// confirm applies the full order's stock and balance effects while the
// lines stay pending; the later ship step only flips line statuses.
func (e *FulfillmentEngine) confirm(ctx context.Context, tx store.Tx, order *models.Order, lines []models.OrderLine, actor string, now time.Time) (*TransitionResult, error) {
	memo := fmt.Sprintf("order confirmed: %s", order.OrderNo)

	movements, err := e.moveStock(ctx, tx, order, lines, outbound, models.MovementReasonSale, memo, actor)
	if err != nil {
		return nil, persistenceErr(err)
	}

	change, err := e.recordOrderAmount(ctx, tx, order, order.TotalAmount, saleOrReturn(order.TotalAmount), memo, actor, now)
	if err != nil {
		return nil, persistenceErr(err)
	}

	if err := tx.UpdateOrderStatus(ctx, order.ID, models.OrderStatusConfirmed, now); err != nil {
		return nil, persistenceErr(err)
	}

	if err := e.appendWorkLog(ctx, tx, models.WorkTypeOrderConfirm, order, actor,
		fmt.Sprintf("order confirmed: %s (%d)", order.OrderNo, order.TotalAmount),
		map[string]interface{}{
			"counterparty_id": order.CounterpartyID,
			"total_amount":    order.TotalAmount,
			"line_count":      len(lines),
		}); err != nil {
		return nil, persistenceErr(err)
	}

	return &TransitionResult{
		OrderID:        order.ID,
		OrderNo:        order.OrderNo,
		CounterpartyID: order.CounterpartyID,
		FromStatus:     order.Status,
		NewStatus:      models.OrderStatusConfirmed,
		Amount:         order.TotalAmount,
		BalanceAfter:   change.BalanceAfter,
		Movements:      movements,
	}, nil
}

// ship moves the scoped pending lines to shipped and derives the order
// status from the full line set. Ledger effects are skipped when the
// order was confirmed first, because confirm already applied them for
// the whole order; ConfirmedAt survives later status changes and marks
// that fact.
func (e *FulfillmentEngine) ship(ctx context.Context, tx store.Tx, order *models.Order, lines []models.OrderLine, lineIDs []int64, actor string, now time.Time) (*TransitionResult, error) {
	scoped := scopedPendingLines(lines, lineIDs)
	if len(scoped) == 0 {
		return nil, ErrEmptyScope
	}

	result := &TransitionResult{
		OrderID:        order.ID,
		OrderNo:        order.OrderNo,
		CounterpartyID: order.CounterpartyID,
		FromStatus:     order.Status,
	}

	alreadyApplied := order.ConfirmedAt != nil
	if !alreadyApplied {
		memo := fmt.Sprintf("order shipped: %s", order.OrderNo)

		movements, err := e.moveStock(ctx, tx, order, scoped, outbound, models.MovementReasonSale, memo, actor)
		if err != nil {
			return nil, persistenceErr(err)
		}
		result.Movements = movements

		amount := lineTotalSum(scoped)
		change, err := e.recordOrderAmount(ctx, tx, order, amount, saleOrReturn(amount), memo, actor, now)
		if err != nil {
			return nil, persistenceErr(err)
		}
		result.Amount = amount
		result.BalanceAfter = change.BalanceAfter
	} else {
		balance, err := e.currentBalance(ctx, tx, order.CounterpartyID)
		if err != nil {
			return nil, persistenceErr(err)
		}
		result.BalanceAfter = balance
	}

	shippedIDs := make(map[int64]bool, len(scoped))
	for _, line := range scoped {
		if err := tx.UpdateLineStatus(ctx, line.ID, models.LineStatusShipped); err != nil {
			return nil, persistenceErr(err)
		}
		shippedIDs[line.ID] = true
	}
	for i := range lines {
		if shippedIDs[lines[i].ID] {
			lines[i].Status = models.LineStatusShipped
		}
	}

	newStatus := deriveOrderStatus(lines)
	if err := tx.UpdateOrderStatus(ctx, order.ID, newStatus, now); err != nil {
		return nil, persistenceErr(err)
	}
	result.NewStatus = newStatus

	if err := e.appendWorkLog(ctx, tx, models.WorkTypeOrderShip, order, actor,
		fmt.Sprintf("order shipped: %s (%d of %d lines)", order.OrderNo, len(scoped), len(lines)),
		map[string]interface{}{
			"counterparty_id": order.CounterpartyID,
			"shipped_lines":   len(scoped),
			"total_lines":     len(lines),
			"amount":          result.Amount,
			"new_status":      newStatus,
		}); err != nil {
		return nil, persistenceErr(err)
	}

	return result, nil
}

// cancel reverses the order's ledger effects when they were applied.
// The original sale movements stay; reversal is recorded as new
// return movements, and shipped lines keep their historical status.
func (e *FulfillmentEngine) cancel(ctx context.Context, tx store.Tx, order *models.Order, lines []models.OrderLine, actor string, now time.Time) (*TransitionResult, error) {
	result := &TransitionResult{
		OrderID:        order.ID,
		OrderNo:        order.OrderNo,
		CounterpartyID: order.CounterpartyID,
		FromStatus:     order.Status,
		NewStatus:      models.OrderStatusCancelled,
	}

	applied := order.Status == models.OrderStatusConfirmed || order.Status == models.OrderStatusShipped
	if applied {
		memo := fmt.Sprintf("order cancelled: %s", order.OrderNo)

		movements, err := e.moveStock(ctx, tx, order, lines, inbound, models.MovementReasonReturn, memo, actor)
		if err != nil {
			return nil, persistenceErr(err)
		}
		result.Movements = movements

		change, err := e.recordOrderAmount(ctx, tx, order, -order.TotalAmount, models.AccountTypeReturn, memo, actor, now)
		if err != nil {
			return nil, persistenceErr(err)
		}
		result.Amount = -order.TotalAmount
		result.BalanceAfter = change.BalanceAfter
	} else {
		balance, err := e.currentBalance(ctx, tx, order.CounterpartyID)
		if err != nil {
			return nil, persistenceErr(err)
		}
		result.BalanceAfter = balance
	}

	if err := tx.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCancelled, now); err != nil {
		return nil, persistenceErr(err)
	}

	if err := e.appendWorkLog(ctx, tx, models.WorkTypeOrderCancel, order, actor,
		fmt.Sprintf("order cancelled: %s", order.OrderNo),
		map[string]interface{}{
			"counterparty_id": order.CounterpartyID,
			"reversed":        applied,
			"total_amount":    order.TotalAmount,
		}); err != nil {
		return nil, persistenceErr(err)
	}

	return result, nil
}

// deliver is a pure status change; stock and balance were settled at
// confirm or ship time.
func (e *FulfillmentEngine) deliver(ctx context.Context, tx store.Tx, order *models.Order, actor string, now time.Time) (*TransitionResult, error) {
	if err := tx.UpdateOrderStatus(ctx, order.ID, models.OrderStatusDelivered, now); err != nil {
		return nil, persistenceErr(err)
	}

	if err := e.appendWorkLog(ctx, tx, models.WorkTypeOrderDeliver, order, actor,
		fmt.Sprintf("order delivered: %s", order.OrderNo), nil); err != nil {
		return nil, persistenceErr(err)
	}

	balance, err := e.currentBalance(ctx, tx, order.CounterpartyID)
	if err != nil {
		return nil, persistenceErr(err)
	}

	return &TransitionResult{
		OrderID:        order.ID,
		OrderNo:        order.OrderNo,
		CounterpartyID: order.CounterpartyID,
		FromStatus:     order.Status,
		NewStatus:      models.OrderStatusDelivered,
		BalanceAfter:   balance,
	}, nil
}

type stockDirection int

const (
	outbound stockDirection = iota // ship: delta = -quantity
	inbound                        // cancel restore: delta = +quantity
)

// moveStock applies one stock delta per line and records one inventory
// movement per line, in stored line order. Options are re-resolved by
// attributes on every call; a line with no match still gets a movement
// with a zero stock snapshot. Prescription orders never resolve an
// option, so their stock is never touched.
func (e *FulfillmentEngine) moveStock(ctx context.Context, tx store.Tx, order *models.Order, lines []models.OrderLine, dir stockDirection, reason, memo, actor string) ([]models.InventoryMovement, error) {
	movements := make([]models.InventoryMovement, 0, len(lines))

	for _, line := range lines {
		var optionID *int64
		if models.AffectsStock(order.OrderKind) {
			option, err := tx.FindOption(ctx, line.ProductID, line.Sph, line.Cyl)
			if err != nil {
				return nil, err
			}
			if option != nil {
				id := option.ID
				optionID = &id
			}
		}

		delta := -line.Quantity
		if dir == inbound {
			delta = line.Quantity
		}

		change, err := e.stock.ApplyDelta(ctx, tx, optionID, delta)
		if err != nil {
			return nil, err
		}

		if delta == 0 {
			continue
		}

		movementType := models.MovementTypeOut
		if delta > 0 {
			movementType = models.MovementTypeIn
		}

		lineMemo := memo
		if optionID == nil && models.AffectsStock(order.OrderKind) {
			lineMemo = memo + " (no matching option)"
		}

		orderID := order.ID
		m := models.InventoryMovement{
			ProductID:   line.ProductID,
			SkuOptionID: optionID,
			Type:        movementType,
			Reason:      reason,
			Quantity:    delta,
			StockBefore: change.StockBefore,
			StockAfter:  change.StockAfter,
			OrderID:     &orderID,
			OrderNo:     order.OrderNo,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
			Memo:        lineMemo,
			ProcessedBy: actor,
		}
		if err := e.journal.RecordInventoryMovement(ctx, tx, &m); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}

	return movements, nil
}

// recordOrderAmount moves the counterparty balance and appends the
// matching account movement in lockstep.
func (e *FulfillmentEngine) recordOrderAmount(ctx context.Context, tx store.Tx, order *models.Order, amount int64, movementType, memo, actor string, now time.Time) (ledger.BalanceChange, error) {
	change, err := e.accounts.ApplyDelta(ctx, tx, order.CounterpartyID, amount)
	if err != nil {
		return ledger.BalanceChange{}, err
	}

	orderID := order.ID
	m := models.AccountMovement{
		CounterpartyID: order.CounterpartyID,
		Type:           movementType,
		Amount:         amount,
		BalanceAfter:   change.BalanceAfter,
		OrderID:        &orderID,
		OrderNo:        order.OrderNo,
		Memo:           memo,
		ProcessedBy:    actor,
		ProcessedAt:    now,
	}
	if err := e.journal.RecordAccountMovement(ctx, tx, &m); err != nil {
		return ledger.BalanceChange{}, err
	}
	return change, nil
}

func (e *FulfillmentEngine) currentBalance(ctx context.Context, tx store.Tx, counterpartyID int64) (int64, error) {
	account, err := tx.AccountForUpdate(ctx, counterpartyID)
	if err != nil {
		return 0, err
	}
	return account.OutstandingAmount, nil
}

func (e *FulfillmentEngine) appendWorkLog(ctx context.Context, tx store.Tx, workType string, order *models.Order, actor, description string, details map[string]interface{}) error {
	detailsJSON := ""
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		detailsJSON = string(b)
	}

	return tx.InsertWorkLog(ctx, &models.WorkLog{
		WorkType:    workType,
		TargetType:  "order",
		TargetID:    order.ID,
		TargetNo:    order.OrderNo,
		Description: description,
		Details:     detailsJSON,
		UserName:    actor,
	})
}

func (e *FulfillmentEngine) publishTransition(ctx context.Context, actor string, result *TransitionResult) {
	if e.publisher == nil {
		return
	}

	changes := make([]models.StockChangeData, 0, len(result.Movements))
	for _, m := range result.Movements {
		changes = append(changes, models.StockChangeData{
			SkuOptionID: m.SkuOptionID,
			ProductID:   m.ProductID,
			Quantity:    m.Quantity,
			StockAfter:  m.StockAfter,
		})
	}

	event := &models.OrderTransitionedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderTransitioned,
			Timestamp: time.Now(),
		},
		OrderID:        result.OrderID,
		OrderNo:        result.OrderNo,
		CounterpartyID: result.CounterpartyID,
		FromStatus:     result.FromStatus,
		ToStatus:       result.NewStatus,
		Amount:         result.Amount,
		BalanceAfter:   result.BalanceAfter,
		StockChanges:   changes,
		Actor:          actor,
	}

	if err := e.publisher.PublishOrderTransitioned(ctx, event); err != nil {
		e.logger.Error("Failed to publish OrderTransitioned event",
			zap.Int64("order_id", result.OrderID), zap.Error(err))
	}
}

// scopedPendingLines returns the pending lines included in the request
// scope, keeping stored order. An empty scope means all pending lines.
func scopedPendingLines(lines []models.OrderLine, lineIDs []int64) []models.OrderLine {
	inScope := func(id int64) bool { return true }
	if len(lineIDs) > 0 {
		ids := make(map[int64]bool, len(lineIDs))
		for _, id := range lineIDs {
			ids[id] = true
		}
		inScope = func(id int64) bool { return ids[id] }
	}

	var out []models.OrderLine
	for _, l := range lines {
		if l.Status == models.LineStatusPending && inScope(l.ID) {
			out = append(out, l)
		}
	}
	return out
}

func lineTotalSum(lines []models.OrderLine) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.LineTotal
	}
	return sum
}

func saleOrReturn(amount int64) string {
	if amount < 0 {
		return models.AccountTypeReturn
	}
	return models.AccountTypeSale
}
