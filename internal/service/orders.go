package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles order intake and read access. Status changes go
// through the FulfillmentEngine, never through this service.
type OrderService struct {
	store     store.Datastore
	publisher Publisher
	logger    *zap.Logger
}

// NewOrderService creates a new order service. publisher may be nil.
func NewOrderService(st store.Datastore, publisher Publisher) *OrderService {
	return &OrderService{
		store:     st,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CounterpartyID int64              `json:"counterparty_id" binding:"required"`
	OrderKind      string             `json:"order_kind" binding:"required"`
	Lines          []OrderLineRequest `json:"lines" binding:"required,min=1"`
}

// OrderLineRequest represents one line in an order. Quantity may be
// negative for return lines, never zero.
type OrderLineRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Sph       string `json:"sph"`
	Cyl       string `json:"cyl"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID     int64  `json:"order_id"`
	OrderNo     string `json:"order_no"`
	TotalAmount int64  `json:"total_amount"`
	LineCount   int    `json:"line_count"`
	Status      string `json:"status"`
}

// CreateOrder creates a new pending order with all lines pending.
// Line totals are computed from the catalog selling price; the order
// total is their signed sum.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if req.OrderKind != models.OrderKindStock && req.OrderKind != models.OrderKindPrescription {
		return nil, fmt.Errorf("unknown order kind: %s", req.OrderKind)
	}
	for _, line := range req.Lines {
		if line.Quantity == 0 {
			return nil, fmt.Errorf("line quantity must be non-zero for product %d", line.ProductID)
		}
	}

	var resp *CreateOrderResponse
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		if _, err := tx.AccountForUpdate(ctx, req.CounterpartyID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCounterpartyNotFound
			}
			return persistenceErr(err)
		}

		now := time.Now()
		orderNo, err := nextOrderNo(ctx, tx, now)
		if err != nil {
			return persistenceErr(err)
		}

		order := &models.Order{
			OrderNo:        orderNo,
			CounterpartyID: req.CounterpartyID,
			OrderKind:      req.OrderKind,
			Status:         models.OrderStatusPending,
			OrderedAt:      now,
		}

		lines := make([]models.OrderLine, 0, len(req.Lines))
		var total int64
		for i, lr := range req.Lines {
			product, err := tx.GetProduct(ctx, lr.ProductID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("product not found: %d", lr.ProductID)
				}
				return persistenceErr(err)
			}

			lineTotal := product.SellingPrice * int64(lr.Quantity)
			lines = append(lines, models.OrderLine{
				ProductID: lr.ProductID,
				Sph:       lr.Sph,
				Cyl:       lr.Cyl,
				Quantity:  lr.Quantity,
				UnitPrice: product.SellingPrice,
				LineTotal: lineTotal,
				Status:    models.LineStatusPending,
				Seq:       i + 1,
			})
			total += lineTotal
		}

		order.TotalAmount = total
		if err := tx.InsertOrder(ctx, order); err != nil {
			return persistenceErr(err)
		}
		for i := range lines {
			lines[i].OrderID = order.ID
			if err := tx.InsertLine(ctx, &lines[i]); err != nil {
				return persistenceErr(err)
			}
		}

		resp = &CreateOrderResponse{
			OrderID:     order.ID,
			OrderNo:     order.OrderNo,
			TotalAmount: order.TotalAmount,
			LineCount:   len(lines),
			Status:      order.Status,
		}
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("create").Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", resp.OrderID),
		zap.String("order_no", resp.OrderNo),
		zap.Int64("total_amount", resp.TotalAmount))

	if s.publisher != nil {
		event := &models.OrderCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderCreated,
				Timestamp: time.Now(),
			},
			OrderID:        resp.OrderID,
			OrderNo:        resp.OrderNo,
			CounterpartyID: req.CounterpartyID,
			OrderKind:      req.OrderKind,
			TotalAmount:    resp.TotalAmount,
			LineCount:      resp.LineCount,
		}
		if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
		}
	}

	return resp, nil
}

// nextOrderNo issues the next order number for the current month:
// two-digit month followed by a sequence that resets monthly.
func nextOrderNo(ctx context.Context, tx store.Tx, now time.Time) (string, error) {
	prefix := fmt.Sprintf("%02d", int(now.Month()))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	nextMonth := monthStart.AddDate(0, 1, 0)

	last, err := tx.LastOrderNo(ctx, prefix, monthStart, nextMonth)
	if err != nil {
		return "", err
	}

	seq := 1
	if len(last) > 2 {
		if n, err := strconv.Atoi(last[2:]); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%d", prefix, seq), nil
}

// GetOrder retrieves an order with its lines.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderLine, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, persistenceErr(err)
	}

	lines, err := s.store.GetOrderLines(ctx, orderID)
	if err != nil {
		return nil, nil, persistenceErr(err)
	}

	return order, lines, nil
}

// GetOrderMovements retrieves the inventory movements of an order.
func (s *OrderService) GetOrderMovements(ctx context.Context, orderID int64) ([]models.InventoryMovement, error) {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, persistenceErr(err)
	}
	return s.store.MovementsByOrder(ctx, orderID)
}

// DeleteOrder physically removes a pending order. Once any line has
// shipped the order is part of the audit trail and deletion is
// rejected; cancellation is the only way out.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID int64, actor string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder")
	defer span.End()

	return s.store.Transact(ctx, func(tx store.Tx) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrOrderNotFound
			}
			return persistenceErr(err)
		}

		if order.Status != models.OrderStatusPending {
			return ErrOrderNotDeletable
		}
		lines, err := tx.LinesByOrder(ctx, orderID)
		if err != nil {
			return persistenceErr(err)
		}
		for _, line := range lines {
			if line.Status == models.LineStatusShipped {
				return ErrOrderNotDeletable
			}
		}

		if err := tx.DeleteOrder(ctx, orderID); err != nil {
			return persistenceErr(err)
		}

		s.logger.Info("Order deleted",
			zap.Int64("order_id", orderID),
			zap.String("order_no", order.OrderNo),
			zap.String("actor", actor))
		return nil
	})
}
