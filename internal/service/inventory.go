package service

import (
	"context"
	"errors"
	"fmt"

	"fulfillment-service/internal/ledger"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// InventoryService handles stock operations outside the fulfillment
// flow: manual adjustments (restock, stocktake corrections) and stock
// reads.
type InventoryService struct {
	store   store.Datastore
	stock   *ledger.StockLedger
	journal *ledger.TransactionLedger
	cache   *SnapshotCache
	logger  *zap.Logger
}

// NewInventoryService creates a new inventory service. cache may be nil.
func NewInventoryService(st store.Datastore, stock *ledger.StockLedger, journal *ledger.TransactionLedger, cache *SnapshotCache) *InventoryService {
	return &InventoryService{
		store:   st,
		stock:   stock,
		journal: journal,
		cache:   cache,
		logger:  util.GetLogger(),
	}
}

// AdjustStockRequest applies one manual signed stock delta to an option.
type AdjustStockRequest struct {
	SkuOptionID int64  `json:"sku_option_id" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required"`
	Memo        string `json:"memo"`
	Actor       string `json:"actor"`
}

// AdjustStockResult reports the committed adjustment.
type AdjustStockResult struct {
	SkuOptionID int64 `json:"sku_option_id"`
	Quantity    int   `json:"quantity"`
	StockBefore int   `json:"stock_before"`
	StockAfter  int   `json:"stock_after"`
}

// AdjustStock moves an option's stock outside any order, recording a
// restock-reason movement. Decreases floor at zero like every other
// stock mutation.
func (s *InventoryService) AdjustStock(ctx context.Context, req *AdjustStockRequest) (*AdjustStockResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.AdjustStock")
	defer span.End()

	if req.Quantity == 0 {
		return nil, ErrInvalidQuantity
	}

	var result *AdjustStockResult
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		option, err := tx.OptionForUpdate(ctx, req.SkuOptionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrOptionNotFound
			}
			return persistenceErr(err)
		}

		change, err := s.stock.ApplyDelta(ctx, tx, &option.ID, req.Quantity)
		if err != nil {
			return persistenceErr(err)
		}

		movementType := models.MovementTypeIn
		if req.Quantity < 0 {
			movementType = models.MovementTypeOut
		}

		m := models.InventoryMovement{
			ProductID:   option.ProductID,
			SkuOptionID: &option.ID,
			Type:        movementType,
			Reason:      models.MovementReasonRestock,
			Quantity:    req.Quantity,
			StockBefore: change.StockBefore,
			StockAfter:  change.StockAfter,
			Memo:        req.Memo,
			ProcessedBy: req.Actor,
		}
		if err := s.journal.RecordInventoryMovement(ctx, tx, &m); err != nil {
			return persistenceErr(err)
		}

		if err := tx.InsertWorkLog(ctx, &models.WorkLog{
			WorkType:    models.WorkTypeStockAdjust,
			TargetType:  "sku_option",
			TargetID:    option.ID,
			Description: fmt.Sprintf("stock adjusted: %+d (%d -> %d)", req.Quantity, change.StockBefore, change.StockAfter),
			Details: fmt.Sprintf(`{"quantity":%d,"stock_before":%d,"stock_after":%d}`,
				req.Quantity, change.StockBefore, change.StockAfter),
			UserName: req.Actor,
		}); err != nil {
			return persistenceErr(err)
		}

		result = &AdjustStockResult{
			SkuOptionID: option.ID,
			Quantity:    req.Quantity,
			StockBefore: change.StockBefore,
			StockAfter:  change.StockAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stock adjusted",
		zap.Int64("sku_option_id", result.SkuOptionID),
		zap.Int("quantity", result.Quantity),
		zap.Int("stock_after", result.StockAfter))

	if s.cache != nil {
		if err := s.cache.ApplyStock(ctx, result.SkuOptionID, result.StockAfter); err != nil {
			s.logger.Error("Failed to refresh stock snapshot",
				zap.Int64("sku_option_id", result.SkuOptionID), zap.Error(err))
		}
	}

	return result, nil
}

// GetOptionStock returns an option's live stock level.
func (s *InventoryService) GetOptionStock(ctx context.Context, optionID int64) (*models.SkuOption, error) {
	option, err := s.store.GetOption(ctx, optionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOptionNotFound
		}
		return nil, persistenceErr(err)
	}
	return option, nil
}
