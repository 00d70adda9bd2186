package models

import "time"

// Event types
const (
	EventTypeOrderCreated      = "ORDER_CREATED"
	EventTypeOrderTransitioned = "ORDER_TRANSITIONED"
	EventTypeDepositRecorded   = "DEPOSIT_RECORDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is taken in
type OrderCreatedEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	OrderNo        string `json:"order_no"`
	CounterpartyID int64  `json:"counterparty_id"`
	OrderKind      string `json:"order_kind"`
	TotalAmount    int64  `json:"total_amount"`
	LineCount      int    `json:"line_count"`
}

// StockChangeData describes one stock mutation within a transition
type StockChangeData struct {
	SkuOptionID *int64 `json:"sku_option_id,omitempty"`
	ProductID   int64  `json:"product_id"`
	Quantity    int    `json:"quantity"`
	StockAfter  int    `json:"stock_after"`
}

// OrderTransitionedEvent published after a fulfillment transition commits
type OrderTransitionedEvent struct {
	BaseEvent
	OrderID        int64             `json:"order_id"`
	OrderNo        string            `json:"order_no"`
	CounterpartyID int64             `json:"counterparty_id"`
	FromStatus     string            `json:"from_status"`
	ToStatus       string            `json:"to_status"`
	Amount         int64             `json:"amount"`
	BalanceAfter   int64             `json:"balance_after"`
	StockChanges   []StockChangeData `json:"stock_changes,omitempty"`
	Actor          string            `json:"actor"`
}

// DepositRecordedEvent published after a counterparty deposit commits
type DepositRecordedEvent struct {
	BaseEvent
	CounterpartyID int64  `json:"counterparty_id"`
	Amount         int64  `json:"amount"`
	BalanceAfter   int64  `json:"balance_after"`
	PaymentMethod  string `json:"payment_method"`
}
