package models

import "time"

// Product represents a catalog product (e.g., one lens series)
type Product struct {
	ID           int64     `db:"id" json:"id"`
	BrandID      int64     `db:"brand_id" json:"brand_id"`
	Name         string    `db:"name" json:"name"`
	SellingPrice int64     `db:"selling_price" json:"selling_price"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SkuOption is a stock-tracked variant of a product, identified by
// its power attributes. Stock is only ever written by the stock ledger.
type SkuOption struct {
	ID        int64     `db:"id" json:"id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Sph       string    `db:"sph" json:"sph"`
	Cyl       string    `db:"cyl" json:"cyl"`
	Stock     int       `db:"stock" json:"stock"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order represents one customer purchase request
type Order struct {
	ID             int64      `db:"id" json:"id"`
	OrderNo        string     `db:"order_no" json:"order_no"`
	CounterpartyID int64      `db:"counterparty_id" json:"counterparty_id"`
	OrderKind      string     `db:"order_kind" json:"order_kind"`
	Status         string     `db:"status" json:"status"`
	TotalAmount    int64      `db:"total_amount" json:"total_amount"`
	OrderedAt      time.Time  `db:"ordered_at" json:"ordered_at"`
	ConfirmedAt    *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ShippedAt      *time.Time `db:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
}

// OrderLine is one SKU-option request within an order. Quantity may be
// negative for return lines. LineTotal is always quantity * unit price.
type OrderLine struct {
	ID        int64  `db:"id" json:"id"`
	OrderID   int64  `db:"order_id" json:"order_id"`
	ProductID int64  `db:"product_id" json:"product_id"`
	Sph       string `db:"sph" json:"sph"`
	Cyl       string `db:"cyl" json:"cyl"`
	Quantity  int    `db:"quantity" json:"quantity"`
	UnitPrice int64  `db:"unit_price" json:"unit_price"`
	LineTotal int64  `db:"line_total" json:"line_total"`
	Status    string `db:"status" json:"status"`
	Seq       int    `db:"seq" json:"seq"`
}

// InventoryMovement is an immutable record of one stock change.
// Rows are append-only; corrections are made with new movements.
type InventoryMovement struct {
	ID          int64     `db:"id" json:"id"`
	ProductID   int64     `db:"product_id" json:"product_id"`
	SkuOptionID *int64    `db:"sku_option_id" json:"sku_option_id,omitempty"`
	Type        string    `db:"type" json:"type"`
	Reason      string    `db:"reason" json:"reason"`
	Quantity    int       `db:"quantity" json:"quantity"`
	StockBefore int       `db:"stock_before" json:"stock_before"`
	StockAfter  int       `db:"stock_after" json:"stock_after"`
	OrderID     *int64    `db:"order_id" json:"order_id,omitempty"`
	OrderNo     string    `db:"order_no" json:"order_no"`
	UnitPrice   int64     `db:"unit_price" json:"unit_price"`
	LineTotal   int64     `db:"line_total" json:"line_total"`
	Memo        string    `db:"memo" json:"memo"`
	ProcessedBy string    `db:"processed_by" json:"processed_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AccountMovement is an immutable record of one change to a
// counterparty's outstanding balance. BalanceAfter is a snapshot taken
// at write time and never recomputed.
type AccountMovement struct {
	ID             int64     `db:"id" json:"id"`
	CounterpartyID int64     `db:"counterparty_id" json:"counterparty_id"`
	Type           string    `db:"type" json:"type"`
	Amount         int64     `db:"amount" json:"amount"`
	BalanceAfter   int64     `db:"balance_after" json:"balance_after"`
	OrderID        *int64    `db:"order_id" json:"order_id,omitempty"`
	OrderNo        string    `db:"order_no" json:"order_no"`
	PaymentMethod  string    `db:"payment_method" json:"payment_method,omitempty"`
	Memo           string    `db:"memo" json:"memo"`
	ProcessedBy    string    `db:"processed_by" json:"processed_by"`
	ProcessedAt    time.Time `db:"processed_at" json:"processed_at"`
}

// CounterpartyAccount is a customer/store's running balance.
// OutstandingAmount is mutated only by the account balance ledger, in
// lockstep with AccountMovement inserts.
type CounterpartyAccount struct {
	ID                int64      `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	Code              string     `db:"code" json:"code"`
	OutstandingAmount int64      `db:"outstanding_amount" json:"outstanding_amount"`
	CreditLimit       int64      `db:"credit_limit" json:"credit_limit"`
	LastPaymentAt     *time.Time `db:"last_payment_at" json:"last_payment_at,omitempty"`
}

// WorkLog is an append-only audit entry, one per fulfillment transition
type WorkLog struct {
	ID          int64     `db:"id" json:"id"`
	WorkType    string    `db:"work_type" json:"work_type"`
	TargetType  string    `db:"target_type" json:"target_type"`
	TargetID    int64     `db:"target_id" json:"target_id"`
	TargetNo    string    `db:"target_no" json:"target_no"`
	Description string    `db:"description" json:"description"`
	Details     string    `db:"details" json:"details"`
	UserName    string    `db:"user_name" json:"user_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusPartial   = "partial"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Line statuses
const (
	LineStatusPending = "pending"
	LineStatusShipped = "shipped"
)

// Order kinds. Stock orders draw from tracked inventory; prescription
// orders are made to order and never touch SkuOption stock.
const (
	OrderKindStock        = "stock"
	OrderKindPrescription = "rx"
)

// AffectsStock reports whether orders of the given kind mutate
// SkuOption stock during fulfillment.
func AffectsStock(orderKind string) bool {
	return orderKind == OrderKindStock
}

// Inventory movement types and reasons
const (
	MovementTypeOut = "out"
	MovementTypeIn  = "in"

	MovementReasonSale    = "sale"
	MovementReasonReturn  = "return"
	MovementReasonRestock = "restock"
)

// Account movement types
const (
	AccountTypeSale       = "sale"
	AccountTypeReturn     = "return"
	AccountTypeDeposit    = "deposit"
	AccountTypeAdjustment = "adjustment"
)

// Work log types
const (
	WorkTypeOrderConfirm = "order_confirm"
	WorkTypeOrderShip    = "order_ship"
	WorkTypeOrderCancel  = "order_cancel"
	WorkTypeOrderDeliver = "order_deliver"
	WorkTypePayment      = "payment"
	WorkTypeDiscount     = "discount"
	WorkTypeStockAdjust  = "stock_adjust"
)

// IsTerminalStatus reports whether an order in the given status accepts
// no further transitions.
func IsTerminalStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}
