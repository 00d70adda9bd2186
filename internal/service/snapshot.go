package service

import (
	"context"
	"fmt"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/redisclient"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// SnapshotCache keeps read-side stock and balance snapshots in Redis.
// The database stays authoritative; the cache is refreshed from
// fulfillment events and fully resynced at startup.
type SnapshotCache struct {
	store  store.Datastore
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewSnapshotCache creates a new snapshot cache.
func NewSnapshotCache(st store.Datastore, redis *redisclient.Client) *SnapshotCache {
	return &SnapshotCache{
		store:  st,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// SyncAll loads every active option's stock and every counterparty
// balance into the cache.
func (c *SnapshotCache) SyncAll(ctx context.Context) error {
	c.logger.Info("Starting snapshot sync to Redis")

	options, err := c.store.ListActiveOptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list options: %w", err)
	}
	for _, option := range options {
		if err := c.redis.SetStock(ctx, option.ID, option.Stock); err != nil {
			c.logger.Error("Failed to cache option stock",
				zap.Int64("option_id", option.ID), zap.Error(err))
		}
	}

	accounts, err := c.store.ListCounterparties(ctx)
	if err != nil {
		return fmt.Errorf("failed to list counterparties: %w", err)
	}
	for _, account := range accounts {
		if err := c.redis.SetBalance(ctx, account.ID, account.OutstandingAmount); err != nil {
			c.logger.Error("Failed to cache balance",
				zap.Int64("counterparty_id", account.ID), zap.Error(err))
		}
	}

	c.logger.Info("Snapshot sync completed",
		zap.Int("options", len(options)),
		zap.Int("counterparties", len(accounts)))
	return nil
}

// ApplyTransition refreshes the cache from a committed transition.
func (c *SnapshotCache) ApplyTransition(ctx context.Context, event *models.OrderTransitionedEvent) error {
	for _, change := range event.StockChanges {
		if change.SkuOptionID == nil {
			continue
		}
		if err := c.redis.SetStock(ctx, *change.SkuOptionID, change.StockAfter); err != nil {
			return err
		}
	}
	return c.redis.SetBalance(ctx, event.CounterpartyID, event.BalanceAfter)
}

// ApplyDeposit refreshes the cached balance from a committed deposit.
func (c *SnapshotCache) ApplyDeposit(ctx context.Context, event *models.DepositRecordedEvent) error {
	return c.redis.SetBalance(ctx, event.CounterpartyID, event.BalanceAfter)
}

// ApplyStock refreshes one option's cached stock level.
func (c *SnapshotCache) ApplyStock(ctx context.Context, optionID int64, stock int) error {
	return c.redis.SetStock(ctx, optionID, stock)
}

// CachedStock returns the cached stock level if present.
func (c *SnapshotCache) CachedStock(ctx context.Context, optionID int64) (int, bool) {
	stock, err := c.redis.GetStock(ctx, optionID)
	if err != nil {
		return 0, false
	}
	return stock, true
}

// CachedBalance returns the cached outstanding balance if present.
func (c *SnapshotCache) CachedBalance(ctx context.Context, counterpartyID int64) (int64, bool) {
	balance, err := c.redis.GetBalance(ctx, counterpartyID)
	if err != nil {
		return 0, false
	}
	return balance, true
}
