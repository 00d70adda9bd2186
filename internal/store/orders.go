package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fulfillment-service/internal/models"

	"github.com/lib/pq"
)

// ---- transactional order operations ----

// OrderForUpdate loads an order and takes a row lock so that two
// transitions on the same order serialize.
func (t *sqlTx) OrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err != nil {
		return nil, notFoundOr(err, "lock order")
	}
	return &order, nil
}

// LinesByOrder returns an order's lines in their stored sequence.
// Movement rows for one order are always created in this order.
func (t *sqlTx) LinesByOrder(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := t.tx.SelectContext(ctx, &lines,
		"SELECT * FROM order_lines WHERE order_id = $1 ORDER BY seq, id", orderID)
	return lines, err
}

// UpdateOrderStatus persists the new status and stamps the matching
// timestamp column.
func (t *sqlTx) UpdateOrderStatus(ctx context.Context, orderID int64, status string, at time.Time) error {
	var err error
	switch status {
	case models.OrderStatusConfirmed:
		_, err = t.tx.ExecContext(ctx,
			"UPDATE orders SET status = $1, confirmed_at = $2 WHERE id = $3", status, at, orderID)
	case models.OrderStatusShipped:
		_, err = t.tx.ExecContext(ctx,
			"UPDATE orders SET status = $1, shipped_at = $2 WHERE id = $3", status, at, orderID)
	case models.OrderStatusDelivered:
		_, err = t.tx.ExecContext(ctx,
			"UPDATE orders SET status = $1, delivered_at = $2 WHERE id = $3", status, at, orderID)
	default:
		_, err = t.tx.ExecContext(ctx,
			"UPDATE orders SET status = $1 WHERE id = $2", status, orderID)
	}
	return err
}

func (t *sqlTx) UpdateLineStatus(ctx context.Context, lineID int64, status string) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE order_lines SET status = $1 WHERE id = $2", status, lineID)
	return err
}

// InsertOrder persists a new order. Losing the order-number uniqueness
// race surfaces as ErrConflict; the caller retries the whole intake.
func (t *sqlTx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_no, counterparty_id, order_kind, status, total_amount, ordered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := t.tx.GetContext(ctx, &order.ID, query,
		order.OrderNo, order.CounterpartyID, order.OrderKind,
		order.Status, order.TotalAmount, order.OrderedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func (t *sqlTx) InsertLine(ctx context.Context, line *models.OrderLine) error {
	query := `
		INSERT INTO order_lines (order_id, product_id, sph, cyl, quantity, unit_price, line_total, status, seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	return t.tx.GetContext(ctx, &line.ID, query,
		line.OrderID, line.ProductID, line.Sph, line.Cyl,
		line.Quantity, line.UnitPrice, line.LineTotal, line.Status, line.Seq)
}

func (t *sqlTx) DeleteOrder(ctx context.Context, orderID int64) error {
	if _, err := t.tx.ExecContext(ctx,
		"DELETE FROM order_lines WHERE order_id = $1", orderID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID)
	return err
}

// LastOrderNo returns the highest order number with the given prefix
// issued in [from, to). Used for monthly sequence generation.
func (t *sqlTx) LastOrderNo(ctx context.Context, prefix string, from, to time.Time) (string, error) {
	var orderNo string
	err := t.tx.GetContext(ctx, &orderNo, `
		SELECT order_no FROM orders
		WHERE order_no LIKE $1 || '%' AND ordered_at >= $2 AND ordered_at < $3
		ORDER BY LENGTH(order_no) DESC, order_no DESC LIMIT 1`, prefix, from, to)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return orderNo, err
}

// ---- read-side order queries ----

func (s *Store) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", orderID)
	if err != nil {
		return nil, notFoundOr(err, "get order")
	}
	return &order, nil
}

func (s *Store) GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := s.db.SelectContext(ctx, &lines,
		"SELECT * FROM order_lines WHERE order_id = $1 ORDER BY seq, id", orderID)
	return lines, err
}
